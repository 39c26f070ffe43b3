package tools

import (
	"context"
	"strings"

	"github.com/seenimoa/stockai/pkg/models"
)

type resolveResult struct {
	Query   string           `json:"query"`
	Matches []models.Listing `json:"matches"`
}

// Resolve lists directory entries whose name contains companyName.
func (k *Toolkit) Resolve(_ context.Context, companyName string) string {
	matches, err := k.ResolveMatches(companyName)
	if err != nil {
		return errorJSON(err.Error())
	}
	return toJSON(resolveResult{Query: companyName, Matches: matches})
}

// ResolveMatches returns at most 10 listings for companyName.
func (k *Toolkit) ResolveMatches(companyName string) ([]models.Listing, error) {
	if strings.TrimSpace(companyName) == "" {
		return nil, errCompanyRequired
	}
	if k.directory == nil {
		return nil, errNoDirectory
	}
	matches := k.directory.Search(companyName)
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}
	if matches == nil {
		matches = []models.Listing{}
	}
	return matches, nil
}
