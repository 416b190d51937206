package mongodb

import (
	// Go Internal Packages
	"context"
	"testing"

	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const day = "2025-12-18"

func metric(merchant, total string) models.MerchantDailyMetric {
	amount := decimal.RequireFromString(total)
	return models.MerchantDailyMetric{
		MerchantID:  merchant,
		Day:         day,
		TxCount:     1,
		ApprovedSum: amount,
		TotalAmount: amount,
		AvgAmount:   amount,
		MaxAmount:   amount,
	}
}

func commands(mt *mtest.T) []string {
	var names []string
	for _, ev := range mt.GetAllStartedEvents() {
		names = append(names, ev.CommandName)
	}
	return names
}

func TestReplaceMetricsSwapsDay(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("delete then insert", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
		)
		store := &Store{DB: mt.DB}

		err := store.ReplaceMetrics(context.Background(), day, []models.MerchantDailyMetric{
			metric("M1", "1520.00"),
			metric("M2", "30.00"),
		})
		require.NoError(mt, err)

		started := mt.GetAllStartedEvents()
		require.Equal(mt, []string{"delete", "insert"}, commands(mt))
		assert.Equal(mt, metricsCollection, started[0].Command.Lookup("delete").StringValue())
		assert.Equal(mt, day, started[0].Command.Lookup("deletes", "0", "q", "dt").StringValue())

		docs, err := started[1].Command.Lookup("documents").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		first := docs[0].Document()
		assert.Equal(mt, "M1", first.Lookup("merchant_id").StringValue())
		assert.Equal(mt, "1520.00", first.Lookup("sum_amount").Decimal128().String())
	})

	mt.Run("empty day only deletes", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}))
		store := &Store{DB: mt.DB}

		require.NoError(mt, store.ReplaceMetrics(context.Background(), day, nil))
		assert.Equal(mt, []string{"delete"}, commands(mt))
	})

	mt.Run("failed insert removes the partial day", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 1, Code: 11000, Message: "duplicate key"}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)
		store := &Store{DB: mt.DB}

		err := store.ReplaceMetrics(context.Background(), day, []models.MerchantDailyMetric{
			metric("M1", "10.00"),
			metric("M1", "11.00"),
		})
		require.Error(mt, err)

		started := mt.GetAllStartedEvents()
		require.Equal(mt, []string{"delete", "insert", "delete"}, commands(mt))
		assert.Equal(mt, day, started[2].Command.Lookup("deletes", "0", "q", "dt").StringValue())
	})

	mt.Run("unstorable amount writes nothing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))
		store := &Store{DB: mt.DB}

		err := store.ReplaceMetrics(context.Background(), day, []models.MerchantDailyMetric{
			metric("M1", "123456789012345678901234567890123456.78"),
		})
		require.ErrorContains(mt, err, "sum_amount")
		assert.Equal(mt, []string{"delete"}, commands(mt))
	})
}

func TestReplaceTransactionsStoresDecimal(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("amount kept exact", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)
		store := &Store{DB: mt.DB}

		err := store.ReplaceTransactions(context.Background(), day, []models.CanonicalTransaction{{
			TxID:       "t1",
			Day:        day,
			MerchantID: "M1",
			Amount:     decimal.RequireFromString("99999999999.999"),
			Status:     models.StatusApproved,
		}})
		require.NoError(mt, err)

		started := mt.GetAllStartedEvents()
		require.Len(mt, started, 2)
		assert.Equal(mt, transactionsCollection, started[1].Command.Lookup("insert").StringValue())
		amount := started[1].Command.Lookup("documents", "0", "amount").Decimal128()
		assert.Equal(mt, "99999999999.999", amount.String())
	})
}
