package shopify

// MoneyBag is the shopMoney half of a *PriceSet.
type MoneyBag struct {
	ShopMoney struct {
		Amount       string `json:"amount"`
		CurrencyCode string `json:"currencyCode"`
	} `json:"shopMoney"`
}

type OrderCustomer struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Variant struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
}

type LineItem struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Quantity             int      `json:"quantity"`
	RefundableQuantity   int      `json:"refundableQuantity"`
	Variant              *Variant `json:"variant"`
	OriginalUnitPriceSet MoneyBag `json:"originalUnitPriceSet"`
}

type Order struct {
	ID                       string         `json:"id"`
	Name                     string         `json:"name"`
	Email                    string         `json:"email"`
	CreatedAt                string         `json:"createdAt"`
	CancelledAt              *string        `json:"cancelledAt"`
	CancelReason             *string        `json:"cancelReason"`
	DisplayFulfillmentStatus string         `json:"displayFulfillmentStatus"`
	DisplayFinancialStatus   string         `json:"displayFinancialStatus"`
	TotalPriceSet            MoneyBag       `json:"totalPriceSet"`
	Customer                 *OrderCustomer `json:"customer"`
	LineItems                struct {
		Edges []struct {
			Node LineItem `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
}

// Items flattens the lineItems connection.
func (o *Order) Items() []LineItem {
	out := make([]LineItem, 0, len(o.LineItems.Edges))
	for _, e := range o.LineItems.Edges {
		out = append(out, e.Node)
	}
	return out
}

type OrdersSearchData struct {
	Orders struct {
		Edges []struct {
			Node Order `json:"node"`
		} `json:"edges"`
	} `json:"orders"`
}

type OrderData struct {
	Order *Order `json:"order"`
}

type FulfillmentLineItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
	LineItem struct {
		ID                 string `json:"id"`
		Name               string `json:"name"`
		Quantity           int    `json:"quantity"`
		RefundableQuantity int    `json:"refundableQuantity"`
	} `json:"lineItem"`
}

type Fulfillment struct {
	ID                   string `json:"id"`
	Status               string `json:"status"`
	CreatedAt            string `json:"createdAt"`
	FulfillmentLineItems struct {
		Edges []struct {
			Node FulfillmentLineItem `json:"node"`
		} `json:"edges"`
	} `json:"fulfillmentLineItems"`
}

type OrderFulfillmentsData struct {
	Order *struct {
		ID           string        `json:"id"`
		Name         string        `json:"name"`
		Fulfillments []Fulfillment `json:"fulfillments"`
	} `json:"order"`
}

type OrderCancelData struct {
	OrderCancel struct {
		Job *struct {
			ID   string `json:"id"`
			Done bool   `json:"done"`
		} `json:"job"`
		OrderCancelUserErrors []UserError `json:"orderCancelUserErrors"`
	} `json:"orderCancel"`
}

type MailingAddress struct {
	ID            string `json:"id"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Address1      string `json:"address1"`
	Address2      string `json:"address2"`
	City          string `json:"city"`
	Province      string `json:"province"`
	ProvinceCode  string `json:"provinceCode"`
	Zip           string `json:"zip"`
	Country       string `json:"country"`
	CountryCodeV2 string `json:"countryCodeV2"`
	Phone         string `json:"phone"`
}

type Customer struct {
	ID             string          `json:"id"`
	FirstName      string          `json:"firstName"`
	LastName       string          `json:"lastName"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	DefaultAddress *MailingAddress `json:"defaultAddress"`
}

type CustomerData struct {
	Customer *Customer `json:"customer"`
}

type CustomerUpdateData struct {
	CustomerUpdate struct {
		Customer   *struct{ ID string } `json:"customer"`
		UserErrors []UserError          `json:"userErrors"`
	} `json:"customerUpdate"`
}

type AddressPayload struct {
	Address    *struct{ ID string } `json:"address"`
	UserErrors []UserError          `json:"userErrors"`
}

type CustomerAddressUpdateData struct {
	CustomerAddressUpdate AddressPayload `json:"customerAddressUpdate"`
}

type CustomerAddressCreateData struct {
	CustomerAddressCreate AddressPayload `json:"customerAddressCreate"`
}
