package types

// ShippingDetails carries the address block collected at checkout.
// Country is a human-readable name; the checkout service maps it to an
// ISO code before handing it to the payment processor.
type ShippingDetails struct {
	FirstName    string `json:"first_name" validate:"required"`
	LastName     string `json:"last_name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"address_line1" validate:"required"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code" validate:"required"`
	Country      string `json:"country" validate:"required"`
}

// FullName joins first and last name the way the processor expects.
func (s ShippingDetails) FullName() string {
	name := s.FirstName + " " + s.LastName
	if s.FirstName == "" {
		return s.LastName
	}
	if s.LastName == "" {
		return s.FirstName
	}
	return name
}
