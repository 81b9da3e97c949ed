package app

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"wordclash/internal/domain"
)

// DefaultWords is the built-in pool used when no word list file is configured.
// Themed around tech and arcade games, with a few everyday words mixed in.
var DefaultWords = []string{
	// Tech
	"HACKER", "CYBORG", "ANDROID", "HOLOGRAM", "MATRIX",
	"NEON", "CHROME", "SYNTH", "GLITCH", "VIRUS",
	"LASER", "PLASMA", "QUANTUM", "BINARY", "PIXEL",
	"DRONE", "ROBOT", "AVATAR", "FIREWALL", "SERVER",
	"KERNEL", "PACKET", "ROUTER", "SOCKET", "BUFFER",
	"COMPILER", "GOROUTINE", "CHANNEL", "MUTEX", "POINTER",

	// Arcade
	"ARCADE", "CONSOLE", "JOYSTICK", "KEYBOARD", "COMBO",
	"HIGHSCORE", "POWERUP", "BOSS", "LEVEL", "CHECKPOINT",
	"RESPAWN", "PLATFORM", "SPRITE", "CARTRIDGE", "TOKEN",

	// Creatures
	"DRAGON", "PHOENIX", "KRAKEN", "SERPENT", "FALCON",
	"PANTHER", "COBRA", "OCTOPUS", "SCORPION", "BEETLE",

	// Objects
	"DIAMOND", "CRYSTAL", "MIRROR", "SHADOW", "BLADE",
	"HELMET", "SHIELD", "GAUNTLET", "COMPASS", "LANTERN",
	"HAMMER", "ANCHOR", "HOURGLASS", "UMBRELLA", "WHISTLE",

	// Nature
	"THUNDER", "LIGHTNING", "TORNADO", "VOLCANO", "GLACIER",
	"METEOR", "ECLIPSE", "AURORA", "TSUNAMI", "AVALANCHE",
}

// WordBank is a thread-safe word pool
type WordBank struct {
	mu    sync.Mutex
	words []string
	rng   *rand.Rand
}

// NewWordBank builds a bank from raw words. Words are normalized to uppercase
// alphanumeric and deduplicated; words that normalize to nothing are skipped.
func NewWordBank(words []string, rng *rand.Rand) (*WordBank, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	normalized := make([]string, 0, len(words))
	for _, w := range words {
		n := NormalizeWord(w)
		if n == "" || slices.Contains(normalized, n) {
			continue
		}
		normalized = append(normalized, n)
	}
	if len(normalized) == 0 {
		return nil, domain.ErrNoWordAvailable
	}

	return &WordBank{words: normalized, rng: rng}, nil
}

// LoadWordBank reads one word per line from path. An empty path selects
// DefaultWords.
func LoadWordBank(path string) (*WordBank, error) {
	if path == "" {
		return NewWordBank(DefaultWords, nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer file.Close()

	var words []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read word list %s: %w", path, err)
	}

	bank, err := NewWordBank(words, nil)
	if err != nil {
		return nil, fmt.Errorf("word list %s: %w", path, err)
	}
	return bank, nil
}

// NormalizeWord uppercases w and strips everything that is not a letter or digit
func NormalizeWord(w string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(w) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NextWord returns a random word that is not in exclude
func (b *WordBank) NextWord(exclude []string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	candidates := make([]string, 0, len(b.words))
	for _, w := range b.words {
		if !slices.Contains(exclude, w) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return "", domain.ErrNoWordAvailable
	}

	return candidates[b.rng.Intn(len(candidates))], nil
}

// Len returns the number of distinct words
func (b *WordBank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.words)
}
