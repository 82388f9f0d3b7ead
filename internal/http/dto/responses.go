package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type FeeInvoiceResponse struct {
	EscrowID           string `json:"escrow_id"`
	InvoiceURL         string `json:"invoice_url"`
	PlatformFeePercent string `json:"platform_fee_percent"`
	PlatformFeeAmount  int64  `json:"platform_fee_amount"`
	BuyerTotalAmount   int64  `json:"buyer_total_amount"`
	SellerNetAmount    int64  `json:"seller_net_amount"`
}

type TaskCategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}
