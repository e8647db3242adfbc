package delivery

import (
	"regexp"
	"sort"
	"strings"

	"convertupload/internal/services"
)

var (
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// ContactInfo carries the recipient addresses for one run. It is immutable
// once captured: SMSTargets is already expanded across carrier gateways.
type ContactInfo struct {
	Email      string
	Phone      string
	SMSTargets []string
}

// NewContactInfo validates the inputs and expands the phone number across
// the carrier gateways. Phone is optional; email is not.
func NewContactInfo(email, phone string, gateways map[string]string) (ContactInfo, error) {
	normalizedEmail, err := NormalizeEmail(email)
	if err != nil {
		return ContactInfo{}, err
	}
	info := ContactInfo{Email: normalizedEmail}
	if strings.TrimSpace(phone) == "" {
		return info, nil
	}
	normalizedPhone, err := NormalizePhone(phone)
	if err != nil {
		return ContactInfo{}, err
	}
	info.Phone = normalizedPhone
	info.SMSTargets = ExpandGateways(normalizedPhone, gateways)
	return info, nil
}

// NormalizeEmail trims and validates an email address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if !emailPattern.MatchString(email) {
		return "", services.Wrap(services.ErrValidation, "delivery", "validate email", "address must look like name@domain.tld", nil)
	}
	return email, nil
}

// NormalizePhone strips common punctuation and requires exactly ten digits.
func NormalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "").Replace(strings.TrimSpace(raw))
	if !phonePattern.MatchString(phone) {
		return "", services.Wrap(services.ErrValidation, "delivery", "validate phone", "number must be exactly ten digits", nil)
	}
	return phone, nil
}

// ExpandGateways builds one SMS address per carrier gateway. The carrier is
// not known in advance, so the number is fanned across every gateway; at
// most one will reach the device and the rest bounce harmlessly. Order is
// deterministic: sorted by carrier name.
func ExpandGateways(phone string, gateways map[string]string) []string {
	carriers := make([]string, 0, len(gateways))
	for carrier := range gateways {
		carriers = append(carriers, carrier)
	}
	sort.Strings(carriers)

	targets := make([]string, 0, len(carriers))
	for _, carrier := range carriers {
		targets = append(targets, phone+gateways[carrier])
	}
	return targets
}
