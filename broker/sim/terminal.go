package sim

import (
	"fmt"
	"os"

	"github.com/rustyeddy/copytrader/broker"
	"github.com/rustyeddy/copytrader/market"
	"gopkg.in/yaml.v3"
)

// Terminal is the YAML descriptor a node receives as its opaque connection
// path. It declares the account identity and the symbols the terminal
// quotes, with initial prices.
type Terminal struct {
	Account struct {
		ID       string  `yaml:"id"`
		Currency string  `yaml:"currency"`
		Balance  float64 `yaml:"balance"`
		Server   string  `yaml:"server"`
	} `yaml:"account"`
	Symbols []TerminalSymbol `yaml:"symbols"`
}

type TerminalSymbol struct {
	Name   string  `yaml:"name"`
	Bid    float64 `yaml:"bid"`
	Ask    float64 `yaml:"ask"`
	Point  float64 `yaml:"point"`
	Digits int     `yaml:"digits"`
}

// Load builds an Engine from a terminal descriptor file.
func Load(path string) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terminal descriptor: %w", err)
	}

	var term Terminal
	if err := yaml.Unmarshal(data, &term); err != nil {
		return nil, fmt.Errorf("parse terminal descriptor: %w", err)
	}

	eng := NewEngine(broker.Account{
		ID:       term.Account.ID,
		Currency: term.Account.Currency,
		Balance:  term.Account.Balance,
		Equity:   term.Account.Balance,
		Server:   term.Account.Server,
	})

	for _, s := range term.Symbols {
		if s.Name == "" {
			return nil, fmt.Errorf("terminal descriptor: symbol with empty name")
		}
		point := s.Point
		if point <= 0 {
			point = market.DefaultPoint
		}
		digits := s.Digits
		if digits == 0 {
			digits = 5
		}
		eng.AddSymbol(market.SymbolInfo{Name: s.Name, Point: point, Digits: digits})
		if s.Bid > 0 && s.Ask > 0 {
			eng.SetTick(s.Name, s.Bid, s.Ask)
		}
	}

	return eng, nil
}
