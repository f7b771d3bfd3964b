package tokens

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
)

// Stats aggregates trading activity over one window.
type Stats struct {
	PriceChange     float64 `json:"priceChange"`
	HolderChange    float64 `json:"holderChange"`
	LiquidityChange float64 `json:"liquidityChange"`
	VolumeChange    float64 `json:"volumeChange"`
	BuyVolume       float64 `json:"buyVolume"`
	SellVolume      float64 `json:"sellVolume"`
	NumBuys         uint64  `json:"numBuys"`
	NumSells        uint64  `json:"numSells"`
	NumTraders      uint64  `json:"numTraders"`
}

// Audit summarizes on-chain safety checks.
type Audit struct {
	MintAuthorityDisabled   bool    `json:"mintAuthorityDisabled"`
	FreezeAuthorityDisabled bool    `json:"freezeAuthorityDisabled"`
	TopHoldersPercentage    float64 `json:"topHoldersPercentage"`
	DevBalancePercentage    float64 `json:"devBalancePercentage"`
}

// Token is one listed asset.
type Token struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Symbol            string   `json:"symbol"`
	Icon              *string  `json:"icon,omitempty"`
	Decimals          uint8    `json:"decimals"`
	USDPrice          float64  `json:"usdPrice"`
	Mcap              float64  `json:"mcap"`
	FDV               float64  `json:"fdv"`
	Liquidity         float64  `json:"liquidity"`
	HolderCount       uint64   `json:"holderCount"`
	TotalSupply       float64  `json:"totalSupply"`
	CircSupply        float64  `json:"circSupply"`
	Twitter           *string  `json:"twitter,omitempty"`
	Website           *string  `json:"website,omitempty"`
	Launchpad         *string  `json:"launchpad,omitempty"`
	OrganicScore      float64  `json:"organicScore"`
	OrganicScoreLabel *string  `json:"organicScoreLabel,omitempty"`
	BondingCurve      float64  `json:"bondingCurve"`
	Tags              []string `json:"tags"`
	CreatedAt         *string  `json:"createdAt,omitempty"`
	GraduatedAt       *string  `json:"graduatedAt,omitempty"`
	Audit             *Audit   `json:"audit,omitempty"`
	Stats5m           *Stats   `json:"stats5m,omitempty"`
	Stats1h           *Stats   `json:"stats1h,omitempty"`
	Stats6h           *Stats   `json:"stats6h,omitempty"`
	Stats24h          *Stats   `json:"stats24h,omitempty"`
}

// FormattedPrice renders the USD price with precision scaled to magnitude.
func (t Token) FormattedPrice() string {
	switch {
	case t.USDPrice < 0.0001:
		return fmt.Sprintf("$%.8f", t.USDPrice)
	case t.USDPrice < 1:
		return fmt.Sprintf("$%.6f", t.USDPrice)
	default:
		return fmt.Sprintf("$%.2f", t.USDPrice)
	}
}

func (t Token) FormattedMcap() string      { return formatLarge(t.Mcap) }
func (t Token) FormattedLiquidity() string { return formatLarge(t.Liquidity) }

// PriceChange24h returns the 24h price change in percent, zero when unknown.
func (t Token) PriceChange24h() float64 {
	if t.Stats24h == nil {
		return 0
	}
	return t.Stats24h.PriceChange
}

// PriceChange1h returns the 1h price change in percent, zero when unknown.
func (t Token) PriceChange1h() float64 {
	if t.Stats1h == nil {
		return 0
	}
	return t.Stats1h.PriceChange
}

// Volume24h returns buy plus sell volume over 24h.
func (t Token) Volume24h() float64 {
	if t.Stats24h == nil {
		return 0
	}
	return t.Stats24h.BuyVolume + t.Stats24h.SellVolume
}

// ShortAddress abbreviates long ids as "abcdef...wxyz".
func (t Token) ShortAddress() string {
	if len(t.ID) > 12 {
		return t.ID[:6] + "..." + t.ID[len(t.ID)-4:]
	}
	return t.ID
}

// IsVerified reports whether any tag marks the token verified.
func (t Token) IsVerified() bool {
	for _, tag := range t.Tags {
		if strings.Contains(tag, "verified") {
			return true
		}
	}
	return false
}

func (t Token) matches(query string) bool {
	return strings.Contains(strings.ToLower(t.Name), query) ||
		strings.Contains(strings.ToLower(t.Symbol), query) ||
		strings.Contains(strings.ToLower(t.ID), query)
}

func formatLarge(n float64) string {
	switch {
	case n >= 1e9:
		return fmt.Sprintf("$%.2fB", n/1e9)
	case n >= 1e6:
		return fmt.Sprintf("$%.2fM", n/1e6)
	case n >= 1e3:
		return fmt.Sprintf("$%.2fK", n/1e3)
	default:
		return fmt.Sprintf("$%.2f", n)
	}
}

// SortField is a column the token list can be ordered by.
type SortField string

const (
	SortMarketCap      SortField = "MarketCap"
	SortPrice          SortField = "Price"
	SortPriceChange24h SortField = "PriceChange24h"
	SortLiquidity      SortField = "Liquidity"
	SortHolders        SortField = "Holders"
	SortVolume24h      SortField = "Volume24h"
)

var sortLabels = map[SortField]string{
	SortMarketCap:      "Market Cap",
	SortPrice:          "Price",
	SortPriceChange24h: "24h Change",
	SortLiquidity:      "Liquidity",
	SortHolders:        "Holders",
	SortVolume24h:      "24h Volume",
}

// SortFields lists the fields in display order.
func SortFields() []SortField {
	return []SortField{SortMarketCap, SortPrice, SortPriceChange24h, SortLiquidity, SortHolders, SortVolume24h}
}

// Label returns the column label.
func (f SortField) Label() string {
	return sortLabels[f]
}

// Valid reports whether f is a known field.
func (f SortField) Valid() bool {
	_, ok := sortLabels[f]
	return ok
}

// ParseSortField parses a field name.
func ParseSortField(value string) (SortField, error) {
	f := SortField(value)
	if !f.Valid() {
		return "", apperrors.WithMetadata(apperrors.CodeActionValidation, "unknown sort field", map[string]string{
			"field": value,
		})
	}
	return f, nil
}

// UnmarshalJSON rejects unknown field names. An empty name means unset and
// sorts by market cap.
func (f *SortField) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*f = ""
		return nil
	}
	parsed, err := ParseSortField(raw)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (f SortField) key(t Token) float64 {
	switch f {
	case SortPrice:
		return t.USDPrice
	case SortPriceChange24h:
		return t.PriceChange24h()
	case SortLiquidity:
		return t.Liquidity
	case SortHolders:
		return float64(t.HolderCount)
	case SortVolume24h:
		return t.Volume24h()
	default:
		return t.Mcap
	}
}
