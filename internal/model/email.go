package model

// EmailRecord is one discovered address for a domain.
type EmailRecord struct {
	Domain     string `json:"domain"`
	Address    string `json:"address"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Position   string `json:"position,omitempty"`
	Confidence int    `json:"confidence,omitempty"` // 0-100 as reported by the finder
	Sources    int    `json:"sources,omitempty"`
	Instance   string `json:"instance"` // originating finder instance id
}
