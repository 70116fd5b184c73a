package billing_test

import (
	"strings"
	"testing"

	"github.com/spacelefarm/billing-engine/billing"
)

func TestPaymentQR_FullURL(t *testing.T) {
	q := billing.PaymentQR{
		BankBin:       "970422",
		AccountNumber: "0988885192",
		AccountName:   "PHAM THI HONG NHUNG",
		Amount:        money(120000),
		Note:          "Chị Hoa",
	}

	url := q.URL()

	if !strings.HasPrefix(url, "https://img.vietqr.io/image/970422-0988885192-") {
		t.Errorf("unexpected URL prefix: %s", url)
	}
	if !strings.Contains(url, "amount=120000") {
		t.Errorf("expected amount in URL: %s", url)
	}
	if !strings.Contains(url, "accountName=PHAM+THI+HONG+NHUNG") {
		t.Errorf("expected encoded account name in URL: %s", url)
	}
}

func TestPaymentQR_NoAccountNumber_ReturnsEmpty(t *testing.T) {
	q := billing.PaymentQR{BankBin: "970422"}
	if url := q.URL(); url != "" {
		t.Errorf("expected empty URL, got %s", url)
	}
}

func TestPaymentQR_MissingBin_FallsBackToDefault(t *testing.T) {
	q := billing.PaymentQR{AccountNumber: "0988885192"}
	if url := q.URL(); !strings.Contains(url, "/image/"+billing.DefaultBankBin+"-") {
		t.Errorf("expected default BIN in URL, got %s", url)
	}
}

func TestPaymentQR_ZeroAmount_OmitsAmountParam(t *testing.T) {
	q := billing.PaymentQR{AccountNumber: "0988885192"}
	if url := q.URL(); strings.Contains(url, "amount=") {
		t.Errorf("expected amount omitted, got %s", url)
	}
}
