package enums

import "fmt"

// AddressType distinguishes billing from shipping addresses.
type AddressType string

const (
	AddressTypeBilling  AddressType = "billing"
	AddressTypeShipping AddressType = "shipping"
)

var validAddressTypes = []AddressType{
	AddressTypeBilling,
	AddressTypeShipping,
}

func (a AddressType) String() string {
	return string(a)
}

func (a AddressType) IsValid() bool {
	for _, candidate := range validAddressTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

func ParseAddressType(value string) (AddressType, error) {
	for _, candidate := range validAddressTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid address type %q", value)
}
