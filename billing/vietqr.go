/*
vietqr.go - Payment QR image URL builder

PURPOSE:
  Builds the VietQR (img.vietqr.io) image URL shown on a printed bill so
  the customer can pay by bank transfer. Pure function, no state; the
  rendering layer embeds the returned URL directly.
*/
package billing

import (
	"fmt"
	"net/url"

	"github.com/shopspring/decimal"
)

// DefaultBankBin is MB Bank, the fallback when settings carry no BIN.
const DefaultBankBin = "970422"

// Banks maps the bank names offered in settings to their BINs.
var Banks = map[string]string{
	"MB Bank":     "970422",
	"Vietcombank": "970436",
	"Techcombank": "970407",
	"BIDV":        "970418",
	"Agribank":    "970405",
	"ACB":         "970416",
	"VPBank":      "970432",
	"TPBank":      "970423",
	"Sacombank":   "970403",
	"VietinBank":  "970415",
	"SHB":         "970443",
	"MSB":         "970426",
	"OCB":         "970448",
	"SeABank":     "970440",
	"HDBank":      "970437",
}

// PaymentQR is the input to the QR URL builder.
type PaymentQR struct {
	BankBin       string
	AccountNumber string
	AccountName   string
	Amount        decimal.Decimal
	Note          string
}

// URL returns the VietQR image URL, or "" when no account number is set.
// A zero or negative amount is omitted so the payer fills it in.
func (q PaymentQR) URL() string {
	if q.AccountNumber == "" {
		return ""
	}
	bin := q.BankBin
	if bin == "" {
		bin = DefaultBankBin
	}

	params := url.Values{}
	if q.Amount.IsPositive() {
		params.Set("amount", q.Amount.String())
	}
	params.Set("addInfo", q.Note)
	params.Set("accountName", q.AccountName)

	return fmt.Sprintf("https://img.vietqr.io/image/%s-%s-cdHGLoP.png?%s",
		bin, q.AccountNumber, params.Encode())
}
