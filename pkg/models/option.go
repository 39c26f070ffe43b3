package models

import "time"

// OptionStrike is one strike row of an option chain for a single expiry.
type OptionStrike struct {
	Strike     float64 `json:"strike"`
	CallOI     float64 `json:"callOI"`
	PutOI      float64 `json:"putOI"`
	CallIV     float64 `json:"callIV"`
	PutIV      float64 `json:"putIV"`
	CallVolume float64 `json:"callVolume"`
	PutVolume  float64 `json:"putVolume"`
	CallLTP    float64 `json:"callLTP"`
	PutLTP     float64 `json:"putLTP"`
}

// OptionChain is the option chain snapshot for the nearest expiry.
type OptionChain struct {
	Symbol     string         `json:"symbol"`
	Underlying float64        `json:"underlying"`
	Expiry     string         `json:"expiry"`
	Expiries   []string       `json:"expiries"`
	Strikes    []OptionStrike `json:"strikes"`

	// Aggregates as reported upstream; zero means "sum the strikes".
	TotalCallOI     float64 `json:"totalCallOI"`
	TotalPutOI      float64 `json:"totalPutOI"`
	TotalCallVolume float64 `json:"totalCallVolume"`
	TotalPutVolume  float64 `json:"totalPutVolume"`

	FetchedAt time.Time `json:"fetchedAt"`
}

// CallOI returns the aggregate call open interest.
func (oc *OptionChain) CallOI() float64 {
	if oc.TotalCallOI > 0 {
		return oc.TotalCallOI
	}
	var total float64
	for _, s := range oc.Strikes {
		total += s.CallOI
	}
	return total
}

// PutOI returns the aggregate put open interest.
func (oc *OptionChain) PutOI() float64 {
	if oc.TotalPutOI > 0 {
		return oc.TotalPutOI
	}
	var total float64
	for _, s := range oc.Strikes {
		total += s.PutOI
	}
	return total
}

// CallVolume returns the aggregate traded call volume.
func (oc *OptionChain) CallVolume() float64 {
	if oc.TotalCallVolume > 0 {
		return oc.TotalCallVolume
	}
	var total float64
	for _, s := range oc.Strikes {
		total += s.CallVolume
	}
	return total
}

// PutVolume returns the aggregate traded put volume.
func (oc *OptionChain) PutVolume() float64 {
	if oc.TotalPutVolume > 0 {
		return oc.TotalPutVolume
	}
	var total float64
	for _, s := range oc.Strikes {
		total += s.PutVolume
	}
	return total
}
