package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "cash"
	PaymentCreditCard  PaymentMethod = "credit_card"
	PaymentDebitCard   PaymentMethod = "debit_card"
	PaymentPix         PaymentMethod = "pix"
	PaymentTransfer    PaymentMethod = "transfer"
	PaymentVoucher     PaymentMethod = "voucher"
	PaymentStoreCredit PaymentMethod = "store_credit"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentCash:        {},
	PaymentCreditCard:  {},
	PaymentDebitCard:   {},
	PaymentPix:         {},
	PaymentTransfer:    {},
	PaymentVoucher:     {},
	PaymentStoreCredit: {},
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if _, ok := paymentMethods[m]; !ok {
		return "", fmt.Errorf("payment method[%s] is not valid", s)
	}
	return m, nil
}

type Payment struct {
	Method       PaymentMethod   `json:"method"`
	Amount       decimal.Decimal `json:"amount"`
	Installments int             `json:"installments"`
}
