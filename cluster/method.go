package cluster

import (
	"errors"
	"strings"
)

// Method selects how points get assigned to centroids
type Method int

// Assignment methods
const (
	Classic Method = iota
	LSH
	Hypercube
)

var (
	unknownMethodErr = errors.New("unknown assignment method")
)

// Methods lists all assignment methods in the order they are compared
var Methods = []Method{Classic, LSH, Hypercube}

func (m Method) String() string {
	switch m {
	case Classic:
		return "Classic"
	case LSH:
		return "LSH"
	case Hypercube:
		return "Hypercube"
	}
	return "Unknown"
}

// Algorithm returns the name used in the clustering report
func (m Method) Algorithm() string {
	switch m {
	case Classic:
		return "Lloyds"
	case LSH:
		return "Range Search LSH"
	case Hypercube:
		return "Range Search Hypercube"
	}
	return "Unknown"
}

func (m Method) validate() error {
	switch m {
	case Classic, LSH, Hypercube:
		return nil
	}
	return unknownMethodErr
}

// ParseMethod accepts method names case-insensitively
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "classic", "lloyd", "lloyds":
		return Classic, nil
	case "lsh":
		return LSH, nil
	case "hypercube", "cube", "hc":
		return Hypercube, nil
	}
	return Classic, unknownMethodErr
}
