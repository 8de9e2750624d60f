package shopify

// OrderCancelMutation cancels an order; the resolver always refunds, restocks and notifies.
const OrderCancelMutation = `
mutation OrderCancel($orderId: ID!, $reason: OrderCancelReason!, $refund: Boolean!, $restock: Boolean!, $notifyCustomer: Boolean, $staffNote: String) {
  orderCancel(orderId: $orderId, reason: $reason, refund: $refund, restock: $restock, notifyCustomer: $notifyCustomer, staffNote: $staffNote) {
    job { id done }
    orderCancelUserErrors { field message code }
  }
}`

// CustomerUpdateMutation applies scalar profile fields.
const CustomerUpdateMutation = `
mutation CustomerUpdate($input: CustomerInput!) {
  customerUpdate(input: $input) {
    customer { id }
    userErrors { field message }
  }
}`

// CustomerAddressUpdateMutation updates an existing address (Admin API 2025-04+ shape).
const CustomerAddressUpdateMutation = `
mutation CustomerAddressUpdate($customerId: ID!, $addressId: ID!, $address: MailingAddressInput!, $setAsDefault: Boolean) {
  customerAddressUpdate(customerId: $customerId, addressId: $addressId, address: $address, setAsDefault: $setAsDefault) {
    address { id }
    userErrors { field message }
  }
}`

// CustomerAddressCreateMutation adds an address and can make it the default.
const CustomerAddressCreateMutation = `
mutation CustomerAddressCreate($customerId: ID!, $address: MailingAddressInput!, $setAsDefault: Boolean) {
  customerAddressCreate(customerId: $customerId, address: $address, setAsDefault: $setAsDefault) {
    address { id }
    userErrors { field message }
  }
}`

// CustomerInput is the customerUpdate input; nil fields are left untouched.
type CustomerInput struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Email     *string `json:"email,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

// MailingAddressInput is used for customerAddressUpdate and customerAddressCreate.
type MailingAddressInput struct {
	FirstName    string  `json:"firstName,omitempty"`
	LastName     string  `json:"lastName,omitempty"`
	Address1     string  `json:"address1"`
	Address2     *string `json:"address2,omitempty"`
	City         string  `json:"city"`
	ProvinceCode *string `json:"provinceCode,omitempty"`
	Zip          string  `json:"zip"`
	CountryCode  string  `json:"countryCode"`
	Phone        *string `json:"phone,omitempty"`
}
