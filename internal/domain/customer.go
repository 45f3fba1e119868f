package domain

import "strings"

const customerSeparator = "|"

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func NewCustomer(name string, phone string, address string) Customer {
	return Customer{
		Name:    strings.TrimSpace(name),
		Phone:   strings.TrimSpace(phone),
		Address: strings.TrimSpace(address),
	}
}

// Encode returns the single-field form "name|phone|address" used by older
// shop databases.
func (c Customer) Encode() string {
	return strings.Join([]string{c.Name, c.Phone, c.Address}, customerSeparator)
}

// DecodeCustomer parses the single-field form. Missing trailing parts are
// empty and every part is trimmed; a separator inside the address is kept.
func DecodeCustomer(raw string) Customer {
	parts := strings.SplitN(raw, customerSeparator, 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return NewCustomer(parts[0], parts[1], parts[2])
}
