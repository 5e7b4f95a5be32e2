package app

// DefaultTopics is the built-in topic list used when no catalog is configured.
var DefaultTopics = []string{
	"Algebra",
	"Biology",
	"Chemistry",
	"Computer Science",
	"Economics",
	"Geography",
	"Geometry",
	"History",
	"Literature",
	"Physics",
	"Psychology",
	"Statistics",
}
