package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"hisab/internal/core"
)

// Company is the business the book belongs to. It is printed on invoices
// and statements and supplies the default VAT rate and voucher prefixes.
type Company struct {
	Name     string                          `yaml:"name"`
	Address  string                          `yaml:"address"`
	Phone    string                          `yaml:"phone"`
	Email    string                          `yaml:"email"`
	PAN      string                          `yaml:"pan"`
	VATRate  float64                         `yaml:"vat_rate"`
	Prefixes map[core.TransactionType]string `yaml:"prefixes"`
}

var defaultPrefixes = map[core.TransactionType]string{
	core.Sale:           "SI",
	core.Purchase:       "PI",
	core.PaymentIn:      "RV",
	core.PaymentOut:     "PV",
	core.SalesReturn:    "SR",
	core.PurchaseReturn: "PR",
}

func DefaultCompany() Company {
	prefixes := make(map[core.TransactionType]string, len(defaultPrefixes))
	for k, v := range defaultPrefixes {
		prefixes[k] = v
	}
	return Company{Name: "Hisab", VATRate: 13, Prefixes: prefixes}
}

// LoadCompany reads a YAML company profile. An empty path yields the
// default profile. Missing prefixes are filled from the defaults.
func LoadCompany(path string) (Company, error) {
	c := DefaultCompany()
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Company{}, fmt.Errorf("read company profile: %w", err)
	}
	var parsed Company
	if err := yaml.Unmarshal(b, &parsed); err != nil {
		return Company{}, fmt.Errorf("parse company profile %s: %w", path, err)
	}
	if strings.TrimSpace(parsed.Name) != "" {
		c.Name = strings.TrimSpace(parsed.Name)
	}
	c.Address, c.Phone, c.Email, c.PAN = parsed.Address, parsed.Phone, parsed.Email, parsed.PAN
	if parsed.VATRate != 0 {
		c.VATRate = parsed.VATRate
	}
	for typ, prefix := range parsed.Prefixes {
		c.Prefixes[typ] = strings.ToUpper(strings.TrimSpace(prefix))
	}
	if err := c.Validate(); err != nil {
		return Company{}, fmt.Errorf("company profile %s: %w", path, err)
	}
	return c, nil
}

func (c Company) Validate() error {
	if c.VATRate < 0 || c.VATRate > 100 {
		return fmt.Errorf("%w: vat_rate must be between 0 and 100", core.ErrValidation)
	}
	seen := make(map[string]core.TransactionType)
	for typ, prefix := range c.Prefixes {
		if !typ.Valid() {
			return fmt.Errorf("%w: unknown transaction type %q in prefixes", core.ErrValidation, typ)
		}
		if prefix == "" || strings.ContainsAny(prefix, "-/ ") {
			return fmt.Errorf("%w: invalid prefix %q for %s", core.ErrValidation, prefix, typ)
		}
		if other, ok := seen[prefix]; ok {
			return fmt.Errorf("%w: prefix %q used by both %s and %s", core.ErrValidation, prefix, other, typ)
		}
		seen[prefix] = typ
	}
	return nil
}

// Prefix returns the voucher prefix for typ.
func (c Company) Prefix(typ core.TransactionType) string {
	if p, ok := c.Prefixes[typ]; ok && p != "" {
		return p
	}
	return defaultPrefixes[typ]
}

func (c Company) VAT() decimal.Decimal {
	return decimal.NewFromFloat(c.VATRate)
}
