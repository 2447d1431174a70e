package models

// Role values returned by the upstream profile endpoint.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

// TokenPair is the credential pair issued by the upstream login endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Address is one delivery address on a user profile.
type Address struct {
	Label   string `json:"label"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2,omitempty"`
	City    string `json:"city"`
	Pincode string `json:"pincode"`
}

// Profile is the upstream profile record.
type Profile struct {
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Addresses      []Address `json:"addresses"`
	ProfilePicture string    `json:"profile_picture"`
	Role           string    `json:"role"`
}

func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// MenuItem is a product snapshot from the catalog. Prices are in minor
// currency units; DefaultPrice applies when Price is absent.
type MenuItem struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	Category     string `json:"category,omitempty"`
	Price        int64  `json:"price,omitempty"`
	DefaultPrice int64  `json:"defaultPrice,omitempty"`
	ImageID      string `json:"imageId,omitempty"`
	IsVeg        bool   `json:"isVeg,omitempty"`
}

// EffectivePrice resolves the price in minor units, falling back to
// DefaultPrice the way the menu views do.
func (m MenuItem) EffectivePrice() int64 {
	if m.Price != 0 {
		return m.Price
	}
	return m.DefaultPrice
}

// Restaurant is one catalog entry on the browse page.
type Restaurant struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	CloudinaryImageID string   `json:"cloudinaryImageId,omitempty"`
	Locality          string   `json:"locality,omitempty"`
	AreaName          string   `json:"areaName,omitempty"`
	CostForTwo        string   `json:"costForTwo,omitempty"`
	Cuisines          []string `json:"cuisines,omitempty"`
	AvgRating         float64  `json:"avgRating,omitempty"`
	DeliveryTimeMins  int      `json:"sla,omitempty"`
}
