package whatsapp

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ttacon/libphonenumber"

	"salonledger/backend/internal/domain"
)

var (
	ErrInvalidMobile = errors.New("customer mobile is not a valid phone number")
	ErrNoMobile      = errors.New("bill has no customer mobile")
)

// Sharer turns bills into click-to-chat links for the customer's phone.
type Sharer struct {
	region    string
	salonName string
}

func New(region string, salonName string) *Sharer {
	if region == "" {
		region = "IN"
	}
	if salonName == "" {
		salonName = "Salon"
	}
	return &Sharer{region: region, salonName: salonName}
}

// Normalize parses a mobile number, reading numbers without a country code
// in the default region, and returns it in E.164 form.
func (s *Sharer) Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	num, err := libphonenumber.Parse(raw, s.region)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMobile, err)
	}
	if !libphonenumber.IsValidNumber(num) {
		return "", ErrInvalidMobile
	}
	return libphonenumber.Format(num, libphonenumber.E164), nil
}

func (s *Sharer) BillLink(bill domain.Bill) (domain.ShareLink, error) {
	if bill.CustomerMobile == "" {
		return domain.ShareLink{}, ErrNoMobile
	}
	mobile, err := s.Normalize(bill.CustomerMobile)
	if err != nil {
		return domain.ShareLink{}, err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "Hello %s!\n\n", bill.ClientName)
	fmt.Fprintf(&msg, "Your bill from *%s* has been processed.\n\n", s.salonName)
	for _, item := range bill.Items {
		fmt.Fprintf(&msg, "• %s - ₹%s\n", item.PackageName, item.PackagePrice.StringFixed(2))
	}
	for _, sale := range bill.ProductSales {
		fmt.Fprintf(&msg, "• %s x %d - ₹%s\n", sale.Name, sale.Quantity, sale.TotalPrice.StringFixed(2))
	}
	fmt.Fprintf(&msg, "\n*Total Amount: ₹%s*\n\n", bill.TotalAmount.StringFixed(2))
	fmt.Fprintf(&msg, "Thank you for visiting %s! Visit us again soon.", s.salonName)

	message := msg.String()
	digits := strings.TrimPrefix(mobile, "+")
	return domain.ShareLink{
		BillID:  bill.ID,
		Mobile:  mobile,
		Message: message,
		URL:     fmt.Sprintf("https://wa.me/%s?text=%s", digits, url.QueryEscape(message)),
	}, nil
}
