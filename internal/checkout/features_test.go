package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/drstein77/oilcheckout/internal/models"
	"github.com/drstein77/oilcheckout/internal/notify"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type checkoutTestContext struct {
	cfg     Config
	cart    *fakeCart
	gateway *fakeGateway
	queue   *notify.Queue
	ctrl    *Controller
	err     error
}

func (c *checkoutTestContext) reset() {
	c.cfg = testConfig()
	c.cart = &fakeCart{}
	c.gateway = &fakeGateway{}
	c.queue = notify.NewQueue(notify.WithDefaultDuration(notify.DefaultDuration))
	c.ctrl = nil
	c.err = nil
}

func (c *checkoutTestContext) controller() *Controller {
	if c.ctrl == nil {
		c.ctrl = NewController("feature", "cart-1", c.cfg, c.cart, c.gateway, c.queue, zap.NewNop())
	}
	return c.ctrl
}

func (c *checkoutTestContext) thePricingIs(threshold, fee, rate string) error {
	var err error
	if c.cfg.Pricing.FreeShippingThreshold, err = decimal.NewFromString(threshold); err != nil {
		return err
	}
	if c.cfg.Pricing.FlatShippingFee, err = decimal.NewFromString(fee); err != nil {
		return err
	}
	if c.cfg.Pricing.TaxRate, err = decimal.NewFromString(rate); err != nil {
		return err
	}
	return nil
}

func (c *checkoutTestContext) aCartWithItemsPriced(prices string) error {
	c.cart.set(strings.Split(prices, ",")...)
	return nil
}

func (c *checkoutTestContext) anEmptyCart() error {
	c.cart.set()
	return nil
}

func (c *checkoutTestContext) theGatewayDeclinesWith(reason string) error {
	c.gateway.err = NewGatewayError(reason)
	return nil
}

func (c *checkoutTestContext) theShopperProceeds() error {
	_, c.err = c.controller().Proceed(context.Background())
	return nil
}

func (c *checkoutTestContext) theShopperProceedsToTheReviewStep() error {
	ctrl := c.controller()
	ctx := context.Background()
	if _, err := ctrl.Proceed(ctx); err != nil {
		return err
	}
	if err := ctrl.SelectAddress(testAddress); err != nil {
		return err
	}
	if _, err := ctrl.Proceed(ctx); err != nil {
		return err
	}
	_, err := ctrl.Proceed(ctx)
	return err
}

func (c *checkoutTestContext) theShopperPlacesTheOrder() error {
	_, c.err = c.controller().PlaceOrder(context.Background())
	return nil
}

func (c *checkoutTestContext) amountIs(name string, get func(models.Totals) decimal.Decimal) func(string) error {
	return func(want string) error {
		got := get(c.controller().Totals()).StringFixed(2)
		if got != want {
			return fmt.Errorf("expected %s %s, got %s", name, want, got)
		}
		return nil
	}
}

func (c *checkoutTestContext) theCheckoutFailsWithAnInvalidTransition() error {
	if !errors.Is(c.err, ErrInvalidTransition) {
		return fmt.Errorf("expected invalid transition, got %v", c.err)
	}
	return nil
}

func (c *checkoutTestContext) theStepIs(want string) error {
	if got := c.controller().Step().String(); got != want {
		return fmt.Errorf("expected step %q, got %q", want, got)
	}
	return nil
}

func (c *checkoutTestContext) theCheckoutIsNotProcessing() error {
	if c.controller().Processing() {
		return errors.New("expected processing to be false")
	}
	return nil
}

func (c *checkoutTestContext) aNotificationMentions(severity, text string) error {
	for _, n := range c.queue.List() {
		if string(n.Severity) == severity && strings.Contains(n.Description, text) {
			return nil
		}
	}
	return fmt.Errorf("no %s notification mentioning %q in %+v", severity, text, c.queue.List())
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &checkoutTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^the pricing is threshold "([^"]*)", flat fee "([^"]*)" and tax rate "([^"]*)"$`, tc.thePricingIs)
	ctx.Step(`^a cart with items priced "([^"]*)"$`, tc.aCartWithItemsPriced)
	ctx.Step(`^an empty cart$`, tc.anEmptyCart)
	ctx.Step(`^the gateway declines with "([^"]*)"$`, tc.theGatewayDeclinesWith)

	ctx.Step(`^the shopper proceeds$`, tc.theShopperProceeds)
	ctx.Step(`^the shopper proceeds to the review step$`, tc.theShopperProceedsToTheReviewStep)
	ctx.Step(`^the shopper places the order$`, tc.theShopperPlacesTheOrder)

	ctx.Step(`^the shipping is "([^"]*)"$`, tc.amountIs("shipping", func(t models.Totals) decimal.Decimal { return t.Shipping }))
	ctx.Step(`^the tax is "([^"]*)"$`, tc.amountIs("tax", func(t models.Totals) decimal.Decimal { return t.Tax }))
	ctx.Step(`^the total is "([^"]*)"$`, tc.amountIs("total", func(t models.Totals) decimal.Decimal { return t.Total }))
	ctx.Step(`^the checkout fails with an invalid transition$`, tc.theCheckoutFailsWithAnInvalidTransition)
	ctx.Step(`^the step is "([^"]*)"$`, tc.theStepIs)
	ctx.Step(`^the checkout is not processing$`, tc.theCheckoutIsNotProcessing)
	ctx.Step(`^an? "([^"]*)" notification mentions "([^"]*)"$`, tc.aNotificationMentions)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features/checkout.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
