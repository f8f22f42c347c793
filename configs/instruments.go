package configs

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"tradeledger/internal/domain"
)

//go:embed instruments.yaml
var defaultInstruments []byte

type instrumentFile struct {
	Instruments []instrumentEntry `yaml:"instruments"`
}

// Prices are read as strings so they convert to decimals exactly.
type instrumentEntry struct {
	Symbol     string `yaml:"symbol"`
	AssetClass string `yaml:"asset_class"`
	LotSize    string `yaml:"lot_size"`
	PipSize    string `yaml:"pip_size"`
	MinPrice   string `yaml:"min_price"`
	MaxPrice   string `yaml:"max_price"`
	BasePrice  string `yaml:"base_price"`
}

// LoadInstruments reads the instrument catalog from path, or the embedded
// default catalog when path is empty
func LoadInstruments(path string) (*domain.InstrumentCatalog, error) {
	data := defaultInstruments
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read instruments file: %w", err)
		}
		data = b
	}
	return ParseInstruments(data)
}

// ParseInstruments decodes a YAML instrument catalog
func ParseInstruments(data []byte) (*domain.InstrumentCatalog, error) {
	var f instrumentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse instruments: %w", err)
	}

	instruments := make([]domain.Instrument, 0, len(f.Instruments))
	for _, e := range f.Instruments {
		if e.Symbol == "" {
			return nil, fmt.Errorf("instrument without symbol")
		}
		inst := domain.Instrument{
			Symbol:     e.Symbol,
			AssetClass: domain.AssetClass(e.AssetClass),
		}
		switch inst.AssetClass {
		case "", domain.AssetForex, domain.AssetCrypto, domain.AssetCommodities, domain.AssetEquities:
		default:
			return nil, fmt.Errorf("instrument %s: unknown asset class %q", e.Symbol, e.AssetClass)
		}

		fields := []struct {
			name string
			raw  string
			dst  *decimal.Decimal
		}{
			{"lot_size", e.LotSize, &inst.LotSize},
			{"pip_size", e.PipSize, &inst.PipSize},
			{"min_price", e.MinPrice, &inst.MinPrice},
			{"max_price", e.MaxPrice, &inst.MaxPrice},
			{"base_price", e.BasePrice, &inst.BasePrice},
		}
		for _, fld := range fields {
			if fld.raw == "" {
				continue
			}
			v, err := decimal.NewFromString(fld.raw)
			if err != nil {
				return nil, fmt.Errorf("instrument %s: invalid %s %q: %w", e.Symbol, fld.name, fld.raw, err)
			}
			*fld.dst = v
		}
		instruments = append(instruments, inst)
	}

	return domain.NewInstrumentCatalog(instruments), nil
}
