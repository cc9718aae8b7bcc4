package enums

// PaymentMethod selects the payment backend for an order.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPix    PaymentMethod = "pix"
	PaymentMethodBoleto PaymentMethod = "boleto"
	PaymentMethodPaypal PaymentMethod = "paypal"
)

var paymentMethods = []PaymentMethod{PaymentMethodCard, PaymentMethodPix, PaymentMethodBoleto, PaymentMethodPaypal}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return member(p, paymentMethods) }

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parse("payment method", value, paymentMethods)
}
