package handlers

import (
	"github.com/fatflowers/mollie-gateway/internal/app/service/registry"
	"github.com/fatflowers/mollie-gateway/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

type RespPaymentResult struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    registry.PaymentResult   `json:"data"`
}

type RespGatewaySettings struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    GatewaySettingsResponse  `json:"data"`
}

type RespDonationDetail struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    DonationDetailResponse   `json:"data"`
}

type RespListDonations struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListDonationsResponse    `json:"data"`
}
