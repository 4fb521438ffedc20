package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// DocumentKind tags the originating document family of a posting. It is a
// closed enum so reporting and posting code can switch exhaustively instead
// of comparing free-form type strings.
type DocumentKind string

const (
	KindCashBankTransaction DocumentKind = "CASH_BANK_TRANSACTION"
	KindCashBankTransfer    DocumentKind = "CASH_BANK_TRANSFER"
	KindDeliveryOrder       DocumentKind = "DELIVERY_ORDER"
	KindQuotation           DocumentKind = "QUOTATION"
	KindManufacturingOrder  DocumentKind = "MANUFACTURING_ORDER"
	KindMaterialIssue       DocumentKind = "MATERIAL_ISSUE"
	KindPaymentRequest      DocumentKind = "PAYMENT_REQUEST"
	KindPurchaseReturn      DocumentKind = "PURCHASE_RETURN"
	KindQualityControl      DocumentKind = "QUALITY_CONTROL"
	KindInvoice             DocumentKind = "INVOICE"
	KindDeposit             DocumentKind = "DEPOSIT"
	KindAssetDepreciation   DocumentKind = "ASSET_DEPRECIATION"
	KindBankReconciliation  DocumentKind = "BANK_RECONCILIATION"
)

// Valid reports whether the kind is a known document family.
func (k DocumentKind) Valid() bool {
	switch k {
	case KindCashBankTransaction, KindCashBankTransfer, KindDeliveryOrder,
		KindQuotation, KindManufacturingOrder, KindMaterialIssue,
		KindPaymentRequest, KindPurchaseReturn, KindQualityControl,
		KindInvoice, KindDeposit, KindAssetDepreciation, KindBankReconciliation:
		return true
	default:
		return false
	}
}

// SourceRef is a typed pointer to the originating document of a posting.
type SourceRef struct {
	Kind DocumentKind
	ID   uuid.UUID
}

// NewSourceRef builds a SourceRef.
func NewSourceRef(kind DocumentKind, id uuid.UUID) SourceRef {
	return SourceRef{Kind: kind, ID: id}
}

// IsZero reports whether the reference is unset.
func (s SourceRef) IsZero() bool {
	return s.Kind == "" || s.ID == uuid.Nil
}

func (s SourceRef) String() string {
	return fmt.Sprintf("%s/%s", s.Kind, s.ID)
}
