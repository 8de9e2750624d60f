package customers

import (
	"context"
	"fmt"
	"strings"

	"voicero/internal/apperr"
	"voicero/internal/shopify"

	"go.uber.org/zap"
)

type Address struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Address1  string `json:"address1"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city"`
	Province  string `json:"province,omitempty"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	Phone     string `json:"phone,omitempty"`
}

// CustomerUpdate holds the fields to change; nil fields are left alone.
type CustomerUpdate struct {
	ID             string   `json:"id"`
	FirstName      *string  `json:"firstName,omitempty"`
	LastName       *string  `json:"lastName,omitempty"`
	Email          *string  `json:"email,omitempty"`
	Phone          *string  `json:"phone,omitempty"`
	DefaultAddress *Address `json:"defaultAddress,omitempty"`
}

func (u CustomerUpdate) hasScalars() bool {
	return u.FirstName != nil || u.LastName != nil || u.Email != nil || u.Phone != nil
}

// UpdateRequest is the body of POST /apps/proxy/customer.
// Email proves ownership when the shopper is not logged in to the storefront.
type UpdateRequest struct {
	Customer CustomerUpdate `json:"customer"`
	Email    string         `json:"email,omitempty"`
}

type Result struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message,omitempty"`
	Customer *shopify.Customer `json:"customer,omitempty"`
}

type Updater struct {
	client *shopify.Client
	logger *zap.Logger
}

func NewUpdater(client *shopify.Client, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{client: client, logger: logger}
}

// Update validates, checks ownership, applies the address then scalar mutations and
// returns the customer as re-read after the writes. loggedInCustomerID comes from the
// signed app-proxy query and may be empty.
func (u *Updater) Update(ctx context.Context, req UpdateRequest, loggedInCustomerID string) (*Result, error) {
	upd := req.Customer
	if msgs := Validate(upd); len(msgs) > 0 {
		return nil, &apperr.Validation{Messages: msgs}
	}
	if upd.DefaultAddress == nil && !upd.hasScalars() {
		return nil, &apperr.Validation{Messages: []string{"Nothing to update."}}
	}

	customerID := shopify.CustomerGID(upd.ID)
	current, err := u.fetch(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if !owns(current, loggedInCustomerID, req.Email) {
		return nil, &apperr.Unauthorized{Message: "customer ownership could not be verified"}
	}

	if a := upd.DefaultAddress; a != nil {
		if err := u.saveAddress(ctx, current, *a); err != nil {
			return nil, err
		}
	}

	if upd.hasScalars() {
		in := shopify.CustomerInput{
			ID:        customerID,
			FirstName: trimmed(upd.FirstName),
			LastName:  trimmed(upd.LastName),
			Email:     trimmed(upd.Email),
			Phone:     trimmed(upd.Phone),
		}
		data, err := shopify.Mutate[shopify.CustomerUpdateData](ctx, u.client, shopify.CustomerUpdateMutation, map[string]any{"input": in})
		if err != nil {
			return nil, fmt.Errorf("customerUpdate: %w", err)
		}
		if ue := data.CustomerUpdate.UserErrors; len(ue) > 0 {
			return nil, &apperr.Validation{Messages: FriendlyErrors(ue)}
		}
	}

	refreshed, err := u.fetch(ctx, customerID)
	if err != nil {
		return nil, err
	}

	u.logger.Info("customer updated",
		zap.String("shop", u.client.ShopDomain()),
		zap.String("customer", shopify.NumericID(customerID)),
		zap.Bool("address", upd.DefaultAddress != nil),
	)
	return &Result{Success: true, Message: "Your profile has been updated.", Customer: refreshed}, nil
}

func (u *Updater) fetch(ctx context.Context, id string) (*shopify.Customer, error) {
	data, err := shopify.Query[shopify.CustomerData](ctx, u.client, shopify.CustomerQuery, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("customer query: %w", err)
	}
	if data.Customer == nil {
		return nil, &apperr.NotFound{Resource: "customer", ID: shopify.NumericID(id)}
	}
	return data.Customer, nil
}

// saveAddress updates the existing default address or creates one as the new default.
func (u *Updater) saveAddress(ctx context.Context, c *shopify.Customer, a Address) error {
	country := CountryCode(a.Country)
	in := shopify.MailingAddressInput{
		FirstName:   strings.TrimSpace(firstNonEmpty(a.FirstName, c.FirstName)),
		LastName:    strings.TrimSpace(firstNonEmpty(a.LastName, c.LastName)),
		Address1:    strings.TrimSpace(a.Address1),
		Address2:    optional(a.Address2),
		City:        strings.TrimSpace(a.City),
		Zip:         strings.TrimSpace(a.Zip),
		CountryCode: country,
		Phone:       optional(a.Phone),
	}
	if code := ProvinceCode(country, a.Province); code != "" {
		in.ProvinceCode = &code
	}

	vars := map[string]any{
		"customerId":   c.ID,
		"address":      in,
		"setAsDefault": true,
	}

	var userErrors []shopify.UserError
	if c.DefaultAddress != nil && c.DefaultAddress.ID != "" {
		vars["addressId"] = c.DefaultAddress.ID
		data, err := shopify.Mutate[shopify.CustomerAddressUpdateData](ctx, u.client, shopify.CustomerAddressUpdateMutation, vars)
		if err != nil {
			return fmt.Errorf("customerAddressUpdate: %w", err)
		}
		userErrors = data.CustomerAddressUpdate.UserErrors
	} else {
		data, err := shopify.Mutate[shopify.CustomerAddressCreateData](ctx, u.client, shopify.CustomerAddressCreateMutation, vars)
		if err != nil {
			return fmt.Errorf("customerAddressCreate: %w", err)
		}
		userErrors = data.CustomerAddressCreate.UserErrors
	}
	if len(userErrors) > 0 {
		return &apperr.Validation{Messages: FriendlyErrors(userErrors)}
	}
	return nil
}

func owns(c *shopify.Customer, loggedInCustomerID, email string) bool {
	if id := strings.TrimSpace(loggedInCustomerID); id != "" && shopify.NumericID(c.ID) == shopify.NumericID(id) {
		return true
	}
	email = strings.TrimSpace(email)
	return email != "" && strings.EqualFold(email, strings.TrimSpace(c.Email))
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	return &s
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
