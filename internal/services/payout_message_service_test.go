package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/learnpay/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func completedTransfer() *models.FundTransfer {
	now := time.Now()
	return &models.FundTransfer{
		ID:            "tr-1",
		OwnerID:       "tutor-1",
		OwnerKind:     models.OwnerSoleTutor,
		BeneficiaryID: "kin-1",
		Snapshot:      models.BalanceSnapshot{"NGN": 250000},
		Status:        models.TransferStatusCompleted,
		TransferRef:   "payout-ref-9",
		CompletedAt:   &now,
	}
}

func TestPayoutMessageService_SendPayoutInstruction(t *testing.T) {
	t.Run("builds one message per snapshotted currency", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewPayoutMessageService(db)

		mock.ExpectQuery("SELECT id, full_name, bank_name, bank_code, account_number_masked").
			WithArgs("kin-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "bank_name", "bank_code", "account_number_masked"}).
				AddRow("kin-1", "Chiamaka Obi", "Access Bank", "044", "******6789"))

		transfer := completedTransfer()
		transfer.Snapshot = models.BalanceSnapshot{"NGN": 250000, "USD": 1200}

		docs, err := service.SendPayoutInstruction(transfer)
		assert.NoError(t, err)
		assert.Len(t, docs, 2)
		for _, doc := range docs {
			assert.Contains(t, doc, "<?xml")
			assert.Contains(t, doc, "Chiamaka Obi")
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects a transfer that is not completed", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewPayoutMessageService(db)

		transfer := completedTransfer()
		transfer.Status = models.TransferStatusPending

		_, err = service.SendPayoutInstruction(transfer)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "requires a completed transfer")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPayoutMessageService_CreatePacs008(t *testing.T) {
	service := NewPayoutMessageService(nil)

	kin := &models.NextOfKin{
		ID:       "kin-1",
		FullName: "Chiamaka Obi",
		BankCode: "044",
	}

	doc, err := service.CreatePacs008(completedTransfer(), kin, "NGN", 250000)
	assert.NoError(t, err)
	assert.NotNil(t, doc)

	assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
	assert.Equal(t, "NGN", string(doc.GrpHdr.TtlIntrBkSttlmAmt.Ccy))
	// Minor units convert to a major-unit decimal on the wire
	assert.Equal(t, 2500.0, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)

	assert.Len(t, doc.CdtTrfTxInf, 1)
	tx := doc.CdtTrfTxInf[0]
	assert.Equal(t, "payout-ref-9", string(tx.PmtId.EndToEndId))
	assert.Equal(t, "tr-1", string(*tx.PmtId.TxId))
	assert.Equal(t, "044", string(tx.CdtrAgt.FinInstnId.ClrSysMmbId.MmbId))
	assert.Equal(t, "Chiamaka Obi", string(*tx.Cdtr.Nm))
}

func TestPayoutMessageService_CreatePacs002(t *testing.T) {
	service := NewPayoutMessageService(nil)

	doc, err := service.CreatePacs002(completedTransfer(), "ACSC")
	assert.NoError(t, err)
	assert.Len(t, doc.TxInfAndSts, 1)
	assert.Equal(t, "tr-1", string(*doc.TxInfAndSts[0].OrgnlTxId))
	assert.Equal(t, "ACSC", string(*doc.TxInfAndSts[0].TxSts))
}

func TestPayoutMessageService_ConvertToXML(t *testing.T) {
	service := NewPayoutMessageService(nil)

	doc, err := service.CreatePacs008(completedTransfer(), &models.NextOfKin{FullName: "Chiamaka Obi", BankCode: "044"}, "NGN", 250000)
	assert.NoError(t, err)

	xmlData, err := service.ConvertToXML(doc)
	assert.NoError(t, err)
	assert.Contains(t, xmlData, `<?xml version="1.0" encoding="UTF-8"?>`)
	assert.Contains(t, xmlData, "Chiamaka Obi")
}
