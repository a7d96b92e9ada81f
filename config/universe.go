package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"stock-pulse/models"
)

// DefaultUniverse is the NIFTY 50 subset ranked when no UNIVERSE_FILE is set
var DefaultUniverse = []models.TrackedSymbol{
	{Symbol: "RELIANCE", CompanyName: "Reliance Industries Ltd.", Exchange: "NSE"},
	{Symbol: "TCS", CompanyName: "Tata Consultancy Services", Exchange: "NSE"},
	{Symbol: "HDFCBANK", CompanyName: "HDFC Bank Ltd.", Exchange: "NSE"},
	{Symbol: "INFY", CompanyName: "Infosys Ltd.", Exchange: "NSE"},
	{Symbol: "ICICIBANK", CompanyName: "ICICI Bank Ltd.", Exchange: "NSE"},
	{Symbol: "KOTAKBANK", CompanyName: "Kotak Mahindra Bank", Exchange: "NSE"},
	{Symbol: "ITC", CompanyName: "ITC Ltd.", Exchange: "NSE"},
	{Symbol: "LT", CompanyName: "Larsen & Toubro Ltd.", Exchange: "NSE"},
	{Symbol: "HINDUNILVR", CompanyName: "Hindustan Unilever Ltd.", Exchange: "NSE"},
	{Symbol: "SBIN", CompanyName: "State Bank of India", Exchange: "NSE"},
}

type universeFile struct {
	Symbols []models.TrackedSymbol `yaml:"symbols"`
}

// LoadUniverse reads the tracked universe from a YAML file of the form
//
//	symbols:
//	  - symbol: RELIANCE
//	    company_name: Reliance Industries Ltd.
//	    exchange: NSE
//
// An empty path returns a copy of DefaultUniverse. Symbols are upper-cased,
// a missing exchange defaults to defaultExchange, and duplicates are rejected.
func LoadUniverse(path, defaultExchange string) ([]models.TrackedSymbol, error) {
	if path == "" {
		out := make([]models.TrackedSymbol, len(DefaultUniverse))
		copy(out, DefaultUniverse)
		return out, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	var f universeFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("failed to parse universe file %s: %w", path, err)
	}
	if len(f.Symbols) == 0 {
		return nil, fmt.Errorf("universe file %s lists no symbols", path)
	}

	seen := make(map[string]bool, len(f.Symbols))
	out := make([]models.TrackedSymbol, 0, len(f.Symbols))
	for i, s := range f.Symbols {
		s.Symbol = strings.ToUpper(strings.TrimSpace(s.Symbol))
		if s.Symbol == "" {
			return nil, fmt.Errorf("universe entry %d has no symbol", i)
		}
		if seen[s.Symbol] {
			return nil, fmt.Errorf("universe lists %s more than once", s.Symbol)
		}
		seen[s.Symbol] = true

		if s.CompanyName == "" {
			s.CompanyName = s.Symbol
		}
		if s.Exchange == "" {
			s.Exchange = defaultExchange
		}
		s.Exchange = strings.ToUpper(s.Exchange)
		out = append(out, s)
	}
	return out, nil
}
