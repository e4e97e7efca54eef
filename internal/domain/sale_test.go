package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/commission-service/pkg/util/errorutil"
)

func validInput() SaleInput {
	return SaleInput{
		Closer:      AdhocCloser("Dana"),
		ClientName:  "  Acme Corp ",
		ClientEmail: "Billing@Acme.io ",
		ServiceName: "Website build",
		Amount:      decimal.RequireFromString("1000"),
	}
}

func TestSaleInputNormalize(t *testing.T) {
	in, err := validInput().Normalize()
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", in.ClientName)
	assert.Equal(t, "billing@acme.io", in.ClientEmail)
}

func TestSaleInputRejectsNonPositiveAmount(t *testing.T) {
	for _, raw := range []string{"0", "-5", "0.004"} {
		in := validInput()
		in.Amount = decimal.RequireFromString(raw)
		_, err := in.Normalize()
		require.Error(t, err, raw)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation), raw)
	}
}

func TestSaleInputRejectsAmountAboveStorageLimit(t *testing.T) {
	in := validInput()
	in.Amount = MaxAmount
	_, err := in.Normalize()
	require.NoError(t, err)

	in.Amount = decimal.New(1, 12)
	_, err = in.Normalize()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Equal(t, apperrors.CodeValidation, de.Code)
	assert.Contains(t, de.Details, "sale_amount")
}

func TestSaleInputRequiresCloserReference(t *testing.T) {
	in := validInput()
	in.Closer = CloserReference{}
	_, err := in.Normalize()
	require.Error(t, err)
	de := apperrors.ToDomainError(err)
	assert.Contains(t, de.Details, "closer")
}

func TestCloserReferenceFrom(t *testing.T) {
	id, name, blank := "c-1", "Dana", "  "

	ref, err := CloserReferenceFrom(&id, nil)
	require.NoError(t, err)
	got, ok := ref.RegisteredID()
	assert.True(t, ok)
	assert.Equal(t, "c-1", got)

	ref, err = CloserReferenceFrom(&blank, &name)
	require.NoError(t, err)
	assert.Equal(t, CloserKindAdhoc, ref.Kind)

	_, err = CloserReferenceFrom(&id, &name)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = CloserReferenceFrom(nil, &blank)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestNewSaleSnapshotsCommission(t *testing.T) {
	in, err := validInput().Normalize()
	require.NoError(t, err)
	sale := NewSale("a-1", in, decimal.NewFromInt(10), decimal.NewFromInt(5), time.Now())
	assert.Equal(t, "100.00", sale.AgentCommission.StringFixed(2))
	assert.Equal(t, "50.00", sale.CloserCommission.StringFixed(2))
	assert.Equal(t, SaleStatusPending, sale.Status)
	assert.Equal(t, CommissionStatusPending, sale.CommissionStatus)
}

func TestCommissionRoundsToCents(t *testing.T) {
	got := Commission(decimal.RequireFromString("333.33"), decimal.RequireFromString("7.5"))
	assert.Equal(t, "25.00", got.StringFixed(2))
	got = Commission(decimal.RequireFromString("99.99"), decimal.RequireFromString("12.345"))
	assert.True(t, got.Equal(decimal.RequireFromString("12.34")), got.String())
}

func TestValidateRate(t *testing.T) {
	assert.NoError(t, ValidateRate("rate", decimal.Zero))
	assert.NoError(t, ValidateRate("rate", decimal.NewFromInt(100)))
	assert.Error(t, ValidateRate("rate", decimal.NewFromInt(150)))
	assert.Error(t, ValidateRate("rate", decimal.NewFromInt(-1)))
}

func TestSaleFilterMatches(t *testing.T) {
	created := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	saleDate := time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC)
	sale := &Sale{
		AgentID:   "a-1",
		Closer:    RegisteredCloser("c-1"),
		Amount:    decimal.NewFromInt(500),
		Status:    SaleStatusPending,
		SaleDate:  &saleDate,
		CreatedAt: created,
	}
	closer, other := "c-1", "c-2"
	from := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	min := decimal.NewFromInt(600)

	assert.True(t, SaleFilter{CloserID: &closer, From: &from, To: &to}.Matches(sale))
	assert.False(t, SaleFilter{CloserID: &other}.Matches(sale))
	assert.False(t, SaleFilter{From: &to}.Matches(sale))
	assert.False(t, SaleFilter{MinAmount: &min}.Matches(sale))
}
