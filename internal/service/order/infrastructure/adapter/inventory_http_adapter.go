package adapter

import (
	"bytes"
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"ecommerce/internal/pkg/errcode"
	"ecommerce/internal/pkg/httpclient"
	"ecommerce/internal/service/order/domain"
)

const (
	purchasePath = "/api/v1/products/purchase"
	releasePath  = "/api/v1/products/release"
)

// InventoryHTTPAdapter 实现了 port.InventoryService 接口。
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	service string
}

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。
func NewInventoryHTTPAdapter(client *httpclient.Client, service string) *InventoryHTTPAdapter {
	return &InventoryHTTPAdapter{client: client, service: service}
}

type releaseRequest struct {
	Reference string `json:"reference"`
}

// PurchaseProducts 一次请求提交整批明细，库存服务保证全部成功或全部失败。
func (a *InventoryHTTPAdapter) PurchaseProducts(ctx context.Context, reference string, lines []domain.PurchaseLine) ([]domain.PurchasedProduct, error) {
	path := purchasePath + "?" + url.Values{"reference": {reference}}.Encode()
	purchased := []domain.PurchasedProduct{}
	if err := a.client.Do(ctx, http.MethodPost, a.service, path, lines, &purchased); err != nil {
		return nil, translate(err)
	}
	return purchased, nil
}

// ReleaseProducts 实现了释放库存的补偿逻辑。
func (a *InventoryHTTPAdapter) ReleaseProducts(ctx context.Context, reference string) error {
	if err := a.client.Do(ctx, http.MethodPost, a.service, releasePath, releaseRequest{Reference: reference}, nil); err != nil {
		return translate(err)
	}
	return nil
}

// translate 把库存服务的错误码还原为领域错误，保留下游给出的描述
func translate(err error) error {
	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return errors.Wrap(err, "inventory call failed")
	}
	body, decodeErr := errcode.Decode(bytes.NewReader(statusErr.Body))
	if decodeErr != nil {
		return errors.Wrap(err, "inventory returned undecodable body")
	}

	var sentinel error
	switch body.Code {
	case errcode.ProductNotFound:
		sentinel = domain.ErrProductNotFound
	case errcode.InvalidQuantity:
		sentinel = domain.ErrInvalidQuantity
	case errcode.InsufficientStock:
		sentinel = domain.ErrInsufficientStock
	case errcode.StockConflict:
		sentinel = domain.ErrStockConflict
	case errcode.DuplicateReference:
		sentinel = domain.ErrDuplicateReference
	default:
		return errors.Wrapf(err, "inventory: %s", body.Message)
	}
	return errors.Wrap(sentinel, body.Message)
}
