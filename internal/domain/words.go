package domain

// RecentWordWindow is how many distinct served words are kept out of rotation
// while the pool is large enough to allow it
const RecentWordWindow = 5

// WordPool supplies the words players have to type
type WordPool interface {
	// NextWord returns a word not contained in exclude, or ErrNoWordAvailable
	NextWord(exclude []string) (string, error)
	// Len returns the number of distinct words in the pool
	Len() int
}
