package datasource

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"github.com/seenimoa/stockai/pkg/models"
	"github.com/seenimoa/stockai/pkg/utils"
)

// --- NSE derivatives response types ---

type nseOptionChainResponse struct {
	Records  nseOCRecords  `json:"records"`
	Filtered nseOCFiltered `json:"filtered"`
}

type nseOCRecords struct {
	ExpiryDates     []string     `json:"expiryDates"`
	Data            []nseOCEntry `json:"data"`
	Timestamp       string       `json:"timestamp"`
	UnderlyingValue nseNum       `json:"underlyingValue"`
}

type nseOCFiltered struct {
	Data []nseOCEntry `json:"data"`
	CE   *nseOCTotals `json:"CE"`
	PE   *nseOCTotals `json:"PE"`
}

type nseOCTotals struct {
	TotOI  nseNum `json:"totOI"`
	TotVol nseNum `json:"totVol"`
}

type nseOCEntry struct {
	StrikePrice float64   `json:"strikePrice"`
	ExpiryDate  string    `json:"expiryDate"`
	CE          *nseOCLeg `json:"CE"`
	PE          *nseOCLeg `json:"PE"`
}

type nseOCLeg struct {
	OpenInterest      nseNum `json:"openInterest"`
	TotalTradedVolume nseNum `json:"totalTradedVolume"`
	ImpliedVolatility nseNum `json:"impliedVolatility"`
	LastPrice         nseNum `json:"lastPrice"`
	UnderlyingValue   nseNum `json:"underlyingValue"`
}

// OptionChain returns the chain for the nearest expiry. Index symbols use
// the indices endpoint. A symbol without listed options is ErrNotFound.
func (n *NSE) OptionChain(ctx context.Context, symbol string) (*models.OptionChain, error) {
	path := "/api/option-chain-equities"
	if utils.IsIndex(symbol) {
		path = "/api/option-chain-indices"
	}

	var resp nseOptionChainResponse
	if err := n.getJSON(ctx, path, url.Values{"symbol": {symbol}}, &resp); err != nil {
		return nil, fmt.Errorf("NSE option chain %s: %w", symbol, err)
	}

	oc := buildOptionChain(symbol, &resp)
	if len(oc.Strikes) == 0 {
		return nil, fmt.Errorf("NSE option chain %s: %w", symbol, ErrNotFound)
	}
	return oc, nil
}

// --- Internal helpers ---

// buildOptionChain converts the NSE response into an OptionChain filtered
// to the nearest expiry.
func buildOptionChain(symbol string, resp *nseOptionChainResponse) *models.OptionChain {
	records := resp.Records
	expiry := ""
	if len(records.ExpiryDates) > 0 {
		expiry = records.ExpiryDates[0]
	}

	oc := &models.OptionChain{
		Symbol:    symbol,
		Expiry:    expiry,
		Expiries:  records.ExpiryDates,
		FetchedAt: utils.NowIST(),
	}
	if records.UnderlyingValue.ok {
		oc.Underlying = records.UnderlyingValue.v
	}

	entries := records.Data
	if len(entries) == 0 {
		entries = resp.Filtered.Data
	}
	for _, e := range entries {
		if expiry != "" && e.ExpiryDate != "" && e.ExpiryDate != expiry {
			continue
		}
		s := models.OptionStrike{Strike: e.StrikePrice}
		if e.CE != nil {
			s.CallOI = e.CE.OpenInterest.v
			s.CallIV = e.CE.ImpliedVolatility.v
			s.CallVolume = e.CE.TotalTradedVolume.v
			s.CallLTP = e.CE.LastPrice.v
			if oc.Underlying == 0 && e.CE.UnderlyingValue.ok {
				oc.Underlying = e.CE.UnderlyingValue.v
			}
		}
		if e.PE != nil {
			s.PutOI = e.PE.OpenInterest.v
			s.PutIV = e.PE.ImpliedVolatility.v
			s.PutVolume = e.PE.TotalTradedVolume.v
			s.PutLTP = e.PE.LastPrice.v
			if oc.Underlying == 0 && e.PE.UnderlyingValue.ok {
				oc.Underlying = e.PE.UnderlyingValue.v
			}
		}
		oc.Strikes = append(oc.Strikes, s)
	}
	sort.Slice(oc.Strikes, func(i, j int) bool { return oc.Strikes[i].Strike < oc.Strikes[j].Strike })

	// The filtered block carries totals for the nearest expiry.
	if ce := resp.Filtered.CE; ce != nil {
		oc.TotalCallOI, oc.TotalCallVolume = ce.TotOI.v, ce.TotVol.v
	}
	if pe := resp.Filtered.PE; pe != nil {
		oc.TotalPutOI, oc.TotalPutVolume = pe.TotOI.v, pe.TotVol.v
	}
	return oc
}
