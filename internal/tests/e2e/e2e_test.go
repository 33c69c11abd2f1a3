package e2e

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DanielPopoola/payment-ledger/internal/adapters/bus"
	"github.com/DanielPopoola/payment-ledger/internal/adapters/handler"
	"github.com/DanielPopoola/payment-ledger/internal/adapters/postgres"
	"github.com/DanielPopoola/payment-ledger/internal/core/domain"
	"github.com/DanielPopoola/payment-ledger/internal/core/ports"
	"github.com/DanielPopoola/payment-ledger/internal/core/service"
	"github.com/DanielPopoola/payment-ledger/internal/testhelpers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// E2ETestSuite runs the HTTP API, the saga consumer and the payee credit
// consumer against a real database and the in-memory bus.
type E2ETestSuite struct {
	suite.Suite
	testDB *testhelpers.TestDatabase
	server *httptest.Server
	client *TestClient
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func TestE2ESuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e tests in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}

func (s *E2ETestSuite) SetupSuite() {
	s.testDB = testhelpers.SetupTestDatabase(s.T())
	logger := testhelpers.QuietLogger()

	eb := bus.NewMemoryBus(4, logger)
	payments := postgres.NewPaymentStore(s.testDB.DB)
	merchants := service.NewMerchantService(postgres.NewMerchantStore(s.testDB.DB), logger)

	intake := service.NewPaymentService(payments, eb, logger)
	saga := service.NewPaymentSaga(payments, merchants, eb, logger)
	trigger := service.NewSagaTrigger(saga, logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.subscribe(ctx, eb, domain.TopicPaymentCreated, "saga", trigger.HandlePaymentCreated)
	s.subscribe(ctx, eb, domain.TopicPaymentCompleted, "credits", merchants.HandlePaymentCompleted)

	mux := http.NewServeMux()
	handler.NewHandler(intake, service.NewQueryService(payments), merchants, logger).RegisterRoutes(mux, nil)
	s.server = httptest.NewServer(handler.Chain(mux, handler.Logging(logger), handler.Recovery(logger)))
	s.client = NewTestClient(s.server.URL)
}

func (s *E2ETestSuite) subscribe(ctx context.Context, eb *bus.MemoryBus, topic, group string, h ports.MessageHandler) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = eb.Subscribe(ctx, topic, group, h)
	}()
	s.Require().Eventually(func() bool { return eb.HasSubscriber(topic, group) }, 5*time.Second, 10*time.Millisecond)
}

func (s *E2ETestSuite) TearDownSuite() {
	s.server.Close()
	s.cancel()
	s.wg.Wait()
	s.testDB.Cleanup(s.T())
}

func (s *E2ETestSuite) SetupTest() {
	s.testDB.CleanTables(s.T())
}

func (s *E2ETestSuite) waitForStatus(id string, want string) Payment {
	var p Payment
	s.Require().Eventually(func() bool {
		var err error
		p, err = s.client.GetPayment(s.T(), id)
		return err == nil && p.Status == want
	}, 10*time.Second, 50*time.Millisecond, "payment %s never reached %s", id, want)
	return p
}

func (s *E2ETestSuite) TestPaymentIsApprovedAndMoneyMoves() {
	t := s.T()
	payer, err := s.client.RegisterMerchant(t, "payer@e2e.test", "250.00")
	s.Require().NoError(err)
	payee, err := s.client.RegisterMerchant(t, "payee@e2e.test", "0")
	s.Require().NoError(err)

	payment, err := s.client.CreatePayment(t, payer.ID, payee.ID, "99.99")
	s.Require().NoError(err)
	s.Equal("PENDING", payment.Status)

	s.waitForStatus(payment.ID, "APPROVED")

	s.Eventually(func() bool {
		m, err := s.client.GetMerchant(t, payee.ID)
		return err == nil && m.Balance == "99.99"
	}, 10*time.Second, 50*time.Millisecond)

	m, err := s.client.GetMerchant(t, payer.ID)
	s.Require().NoError(err)
	s.Equal("150.01", m.Balance)

	events, err := s.client.PaymentEvents(t, payment.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("CREATED", events[0].Type)
	s.Equal("APPROVED", events[1].Type)
}

func (s *E2ETestSuite) TestInsufficientFundsRejects() {
	t := s.T()
	payer, err := s.client.RegisterMerchant(t, "poor@e2e.test", "5.00")
	s.Require().NoError(err)
	payee, err := s.client.RegisterMerchant(t, "rich@e2e.test", "0")
	s.Require().NoError(err)

	payment, err := s.client.CreatePayment(t, payer.ID, payee.ID, "10.00")
	s.Require().NoError(err)

	s.waitForStatus(payment.ID, "REJECTED")

	m, err := s.client.GetMerchant(t, payer.ID)
	s.Require().NoError(err)
	s.Equal("5", m.Balance)

	events, err := s.client.PaymentEvents(t, payment.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("REJECTED", events[1].Type)
}

func (s *E2ETestSuite) TestInvalidPaymentIsRefused() {
	t := s.T()
	id := uuid.NewString()

	_, err := s.client.CreatePayment(t, id, id, "10.00")

	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusBadRequest, apiErr.Status)
}

func (s *E2ETestSuite) TestUnknownPayment() {
	_, err := s.client.GetPayment(s.T(), uuid.NewString())

	var apiErr *APIError
	s.Require().True(errors.As(err, &apiErr))
	s.Equal(http.StatusNotFound, apiErr.Status)
	s.Equal(domain.ErrCodePaymentNotFound, apiErr.Code)
}
