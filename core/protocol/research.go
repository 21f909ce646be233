package protocol

import (
	"errors"
	"strings"
)

// ErrIncompleteRequest is returned by ResearchRequest.Validate.
var ErrIncompleteRequest = errors.New("research request requires manufacturer and product name")

// ResearchRequest names the guitar to research. ProductName fills the
// {model} placeholder of the system prompt.
type ResearchRequest struct {
	Manufacturer string `json:"manufacturer"`
	ProductName  string `json:"product_name"`
	Year         string `json:"year,omitempty"`
}

// Validate reports whether the request names a manufacturer and product.
func (r ResearchRequest) Validate() error {
	if strings.TrimSpace(r.Manufacturer) == "" || strings.TrimSpace(r.ProductName) == "" {
		return ErrIncompleteRequest
	}
	return nil
}

// Placeholders maps prompt placeholder names to request values.
func (r ResearchRequest) Placeholders() map[string]string {
	return map[string]string{
		"manufacturer": r.Manufacturer,
		"model":        r.ProductName,
		"year":         r.Year,
	}
}

// ResearchRecord is the structured result of a research run.
type ResearchRecord struct {
	Manufacturer ManufacturerInfo `json:"manufacturer"`
	Model        ModelInfo        `json:"model"`
	Item         ItemInfo         `json:"item"`
	Sources      []Source         `json:"sources,omitempty"`
}

type ManufacturerInfo struct {
	Name        string `json:"name"`
	Country     string `json:"country,omitempty"`
	FoundedYear int    `json:"founded_year,omitempty"`
	Website     string `json:"website,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type ModelInfo struct {
	Name        string `json:"name"`
	Year        string `json:"year,omitempty"`
	BodyWood    string `json:"body_wood,omitempty"`
	NeckWood    string `json:"neck_wood,omitempty"`
	Fretboard   string `json:"fretboard,omitempty"`
	Pickups     string `json:"pickups,omitempty"`
	ScaleLength string `json:"scale_length,omitempty"`
	Finish      string `json:"finish,omitempty"`
	MSRP        string `json:"msrp,omitempty"`
}

type ItemInfo struct {
	SerialNumber string `json:"serial_number,omitempty"`
	Condition    string `json:"condition,omitempty"`
	Price        string `json:"price,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Source is a page the research drew on and the claims taken from it.
type Source struct {
	URL    string   `json:"url"`
	Title  string   `json:"title,omitempty"`
	Claims []string `json:"claims,omitempty"`
}

// Evaluation is the synthesizer's judgement of the research.
type Evaluation struct {
	Feedback           string `json:"feedback"`
	SuccessCriteriaMet bool   `json:"success_criteria_met"`
	UserInputNeeded    bool   `json:"user_input_needed"`
}
