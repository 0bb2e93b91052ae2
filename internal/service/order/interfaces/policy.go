package interfaces

import (
	"github.com/google/cel-go/cel"

	"ecommerce/internal/pkg/validation"
	"ecommerce/internal/service/order/application"
)

// NewOrderPolicies 编译下单请求的 CEL 规则，规则中通过 order 变量访问请求，例如
// order.amount <= 10000.0 或 size(order.products) <= 50
func NewOrderPolicies(rules []validation.Rule) (*validation.PolicyEngine, error) {
	if len(rules) == 0 {
		return nil, nil
	}
	return validation.NewPolicyEngine(map[string]*cel.Type{
		"order": cel.MapType(cel.StringType, cel.DynType),
	}, rules)
}

// PolicyInput 把请求转换为 CEL 可求值的结构
func PolicyInput(req *application.CreateOrderRequest) map[string]any {
	products := make([]any, 0, len(req.Products))
	for _, p := range req.Products {
		products = append(products, map[string]any{
			"productId": int64(p.ProductID),
			"quantity":  p.Quantity,
		})
	}
	return map[string]any{
		"order": map[string]any{
			"reference":     req.Reference,
			"amount":        req.Amount.InexactFloat64(),
			"paymentMethod": string(req.PaymentMethod),
			"customerId":    req.CustomerID,
			"products":      products,
		},
	}
}
