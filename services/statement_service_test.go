package services

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
)

func TestStatementExport(t *testing.T) {
	db := setupTestDB(t)
	user := createUser(t, db, "Djamel Wholesaler", models.RoleWholesaler)
	other := createUser(t, db, "Pharmacie El Amel", models.RolePharmacyOwner)

	for i, ref := range []string{"PAY-1", "PAY-2", "PAY-3"} {
		payer, payee := other.ID, user.ID
		if i == 2 {
			payer, payee = user.ID, other.ID
		}
		require.NoError(t, db.Create(&models.PaymentTransaction{
			PayerID: payer, PayerRole: models.RolePharmacyOwner, PayeeID: payee, PayeeKind: models.PayeeKindUser,
			Amount: decimal.NewFromInt(1500), PaymentType: models.PaymentTypePharmacyToWholesaler,
			PaymentReference: ref, PaymentStatus: models.PaymentStatusCompleted,
		}).Error)
	}
	require.NoError(t, db.Create(&models.PaymentTransaction{
		PayerID: other.ID, PayerRole: models.RolePharmacyOwner, PayeeID: other.ID, PayeeKind: models.PayeeKindUser,
		Amount: decimal.NewFromInt(1), PaymentType: models.PaymentTypeOther, PaymentReference: "PAY-unrelated",
	}).Error)

	svc := NewStatementService(db)
	out, count, err := svc.Export(context.Background(), user, StatementFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))

	future := time.Now().Add(time.Hour)
	_, count, err = svc.Export(context.Background(), user, StatementFilter{Start: &future})
	require.NoError(t, err)
	assert.Zero(t, count)

	past := time.Now().Add(-time.Hour)
	_, _, err = svc.Export(context.Background(), user, StatementFilter{Start: &future, End: &past})
	assert.True(t, errors.Is(err, utils.ErrValidation))
}
