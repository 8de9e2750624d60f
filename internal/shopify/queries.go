package shopify

// orderFields is shared by every order read; the resolver needs status, ownership and line items.
const orderFields = `
        id
        name
        email
        createdAt
        cancelledAt
        cancelReason
        displayFulfillmentStatus
        displayFinancialStatus
        totalPriceSet { shopMoney { amount currencyCode } }
        customer { id email firstName lastName }
        lineItems(first: 100) {
          edges {
            node {
              id
              name
              quantity
              refundableQuantity
              variant { id title price }
              originalUnitPriceSet { shopMoney { amount currencyCode } }
            }
          }
        }
`

// OrdersSearchQuery finds an order by the search syntax "name:#1001 AND customer_email:a@b.com".
const OrdersSearchQuery = `
query OrderLookup($q: String!) {
  orders(first: 1, query: $q) {
    edges {
      node {` + orderFields + `      }
    }
  }
}`

// OrderByIDQuery fetches an order by GID.
const OrderByIDQuery = `
query OrderByID($id: ID!) {
  order(id: $id) {` + orderFields + `  }
}`

// OrderFulfillmentsQuery returns the fulfilled line items a return is built from.
const OrderFulfillmentsQuery = `
query OrderFulfillments($id: ID!) {
  order(id: $id) {
    id
    name
    fulfillments(first: 20) {
      id
      status
      createdAt
      fulfillmentLineItems(first: 100) {
        edges {
          node {
            id
            quantity
            lineItem { id name quantity refundableQuantity }
          }
        }
      }
    }
  }
}`

// CustomerQuery reads the profile fields the updater validates against and returns.
const CustomerQuery = `
query CustomerProfile($id: ID!) {
  customer(id: $id) {
    id
    firstName
    lastName
    email
    phone
    defaultAddress {
      id
      firstName
      lastName
      address1
      address2
      city
      province
      provinceCode
      zip
      country
      countryCodeV2
      phone
    }
  }
}`
