package services

import (
	"database/sql"
	"encoding/xml"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/learnpay/backend/internal/models"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
)

// PayoutMessageService builds ISO 20022 messages for completed fund
// transfers: one pacs.008 credit transfer per snapshotted currency,
// addressed to the owner's verified next of kin.
type PayoutMessageService struct {
	db *sql.DB
}

func NewPayoutMessageService(db *sql.DB) *PayoutMessageService {
	return &PayoutMessageService{db: db}
}

// SendPayoutInstruction builds and dispatches the payout messages for a
// completed transfer. Called after the debits have committed; failures
// here never roll back the ledger.
func (p *PayoutMessageService) SendPayoutInstruction(transfer *models.FundTransfer) ([]string, error) {
	if transfer.Status != models.TransferStatusCompleted {
		return nil, fmt.Errorf("payout instruction requires a completed transfer, got %q", transfer.Status)
	}

	kin, err := p.loadBeneficiary(transfer.BeneficiaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load beneficiary %s: %w", transfer.BeneficiaryID, err)
	}

	var docs []string
	for currency, amount := range transfer.Snapshot {
		if amount <= 0 {
			continue
		}
		pacs008, err := p.CreatePacs008(transfer, kin, currency, amount)
		if err != nil {
			return nil, err
		}
		xmlData, err := p.ConvertToXML(pacs008)
		if err != nil {
			return nil, err
		}
		docs = append(docs, xmlData)
		p.sendToSettlement(xmlData)
	}

	return docs, nil
}

func (p *PayoutMessageService) loadBeneficiary(id string) (*models.NextOfKin, error) {
	var kin models.NextOfKin
	err := p.db.QueryRow(`
		SELECT id, full_name, bank_name, bank_code, account_number_masked
		FROM next_of_kin WHERE id = $1`, id).
		Scan(&kin.ID, &kin.FullName, &kin.BankName, &kin.BankCode, &kin.AccountNumberMasked)
	if err != nil {
		return nil, err
	}
	return &kin, nil
}

func (p *PayoutMessageService) sendToSettlement(xmlData string) {
	// TODO: post to the payout partner's submission endpoint once the
	// partner finalises their API contract.
	log.Printf("[PAYOUT] Dispatching payout instruction (%d bytes)", len(xmlData))
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message
// for one currency leg of a fund transfer
func (p *PayoutMessageService) CreatePacs008(transfer *models.FundTransfer, kin *models.NextOfKin, currency string, amountMinor int64) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()
	settlementDate := time.Now()
	amount := float64(amountMinor) / 100

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(transfer.ID)}[0],
					EndToEndId: common.Max35Text(transfer.TransferRef),
					TxId:       &[]common.Max35Text{common.Max35Text(transfer.ID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier("LEARNPAY")}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(transfer.OwnerID)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(kin.BankCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(kin.FullName)}[0],
				},
			},
		},
	}

	return doc, nil
}

// CreatePacs002 creates a pacs.002 payment status report for a transfer
func (p *PayoutMessageService) CreatePacs002(transfer *models.FundTransfer, status string) (*pacs_v08.FIToFIPaymentStatusReportV08, error) {
	msgId := uuid.New().String()
	creDtTm := time.Now()

	doc := &pacs_v08.FIToFIPaymentStatusReportV08{
		GrpHdr: pacs_v08.GroupHeader53{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
		},
		TxInfAndSts: []pacs_v08.PaymentTransaction80{
			{
				OrgnlInstrId:    &[]common.Max35Text{common.Max35Text(transfer.ID)}[0],
				OrgnlEndToEndId: &[]common.Max35Text{common.Max35Text(transfer.TransferRef)}[0],
				OrgnlTxId:       &[]common.Max35Text{common.Max35Text(transfer.ID)}[0],
				TxSts:           &[]pacs_v08.ExternalPaymentTransactionStatus1Code{pacs_v08.ExternalPaymentTransactionStatus1Code(status)}[0], // ACCP, RJCT, ACSC, etc.
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts an ISO 20022 document to an XML string
func (p *PayoutMessageService) ConvertToXML(doc interface{}) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
