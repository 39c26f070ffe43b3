package datasource

import (
	"context"
	"errors"
	"testing"
)

const optionChainTCS = `{
  "records": {
    "expiryDates": ["31-Oct-2024", "28-Nov-2024"],
    "underlyingValue": 4230,
    "data": [
      {"strikePrice": 4300, "expiryDate": "31-Oct-2024", "CE": {"openInterest": 900, "impliedVolatility": 18, "lastPrice": 40}, "PE": {"openInterest": 300, "impliedVolatility": 20}},
      {"strikePrice": 4200, "expiryDate": "31-Oct-2024", "CE": {"openInterest": 500, "impliedVolatility": 19}, "PE": {"openInterest": 1200, "impliedVolatility": "21.5"}},
      {"strikePrice": 4200, "expiryDate": "28-Nov-2024", "CE": {"openInterest": 99999}},
      {"strikePrice": 4100, "expiryDate": "31-Oct-2024", "PE": {"openInterest": 800}}
    ]
  },
  "filtered": {"CE": {"totOI": 1400, "totVol": 10}, "PE": {"totOI": 2300, "totVol": 12}}
}`

func TestNSEOptionChain(t *testing.T) {
	srv, _ := newNSEServer(t)
	n := NewNSE(WithBaseURL(srv.URL))

	oc, err := n.OptionChain(context.Background(), "TCS")
	if err != nil {
		t.Fatalf("OptionChain: %v", err)
	}
	if oc.Expiry != "31-Oct-2024" || oc.Underlying != 4230 {
		t.Errorf("Expiry=%q Underlying=%v", oc.Expiry, oc.Underlying)
	}
	if len(oc.Strikes) != 3 {
		t.Fatalf("strikes = %d, want 3 (later expiry filtered)", len(oc.Strikes))
	}
	for i := 1; i < len(oc.Strikes); i++ {
		if oc.Strikes[i-1].Strike >= oc.Strikes[i].Strike {
			t.Fatalf("strikes not ascending: %+v", oc.Strikes)
		}
	}
	if oc.Strikes[1].PutIV != 21.5 {
		t.Errorf("PutIV = %v, want 21.5", oc.Strikes[1].PutIV)
	}
	if oc.CallOI() != 1400 || oc.PutOI() != 2300 {
		t.Errorf("totals = %v/%v, want filtered block", oc.CallOI(), oc.PutOI())
	}
	if oc.CallVolume() != 10 || oc.PutVolume() != 12 {
		t.Errorf("volumes = %v/%v, want filtered block", oc.CallVolume(), oc.PutVolume())
	}
}

func TestNSEOptionChainNoStrikes(t *testing.T) {
	srv, _ := newNSEServer(t)
	n := NewNSE(WithBaseURL(srv.URL))

	_, err := n.OptionChain(context.Background(), "IRCTC")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBuildOptionChainSumsWithoutTotals(t *testing.T) {
	resp := &nseOptionChainResponse{}
	resp.Filtered.Data = []nseOCEntry{
		{StrikePrice: 100, CE: &nseOCLeg{OpenInterest: nseNum{v: 10, ok: true}, UnderlyingValue: nseNum{v: 101, ok: true}}},
		{StrikePrice: 110, PE: &nseOCLeg{OpenInterest: nseNum{v: 30, ok: true}}},
	}
	oc := buildOptionChain("X", resp)
	if oc.Underlying != 101 {
		t.Errorf("Underlying = %v, want taken from a leg", oc.Underlying)
	}
	if oc.CallOI() != 10 || oc.PutOI() != 30 {
		t.Errorf("summed OI = %v/%v", oc.CallOI(), oc.PutOI())
	}
}
