package adapter

import (
	"context"
	"net/http"
	"net/url"

	"github.com/pkg/errors"

	"ecommerce/internal/pkg/httpclient"
	"ecommerce/internal/service/order/domain"
)

// CustomerHTTPAdapter 实现了 port.CustomerService 接口。
type CustomerHTTPAdapter struct {
	client  *httpclient.Client
	service string
}

// NewCustomerHTTPAdapter 创建一个新的客户服务适配器，service 为注册中心中的服务名。
func NewCustomerHTTPAdapter(client *httpclient.Client, service string) *CustomerHTTPAdapter {
	return &CustomerHTTPAdapter{client: client, service: service}
}

// FindByID 客户服务返回 404 时视为客户不存在
func (a *CustomerHTTPAdapter) FindByID(ctx context.Context, customerID string) (*domain.Customer, error) {
	var customer domain.Customer
	err := a.client.Do(ctx, http.MethodGet, a.service, "/api/v1/customers/"+url.PathEscape(customerID), nil, &customer)
	if err != nil {
		var statusErr *httpclient.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "lookup customer %s", customerID)
	}
	return &customer, nil
}
