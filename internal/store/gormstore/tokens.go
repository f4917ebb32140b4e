package gormstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/clubledger/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	errorSubjectBalance   = "balance"
	errorSubjectAllowance = "allowance"
	errorSubjectTransfer  = "transfer"
	memoMint              = "mint"
	defaultHistoryLimit   = 100
)

// TokenBook is a database-backed fungible token ledger: balances, allowances
// and an append-only transfer journal. Bound to a transaction it commits or
// rolls back with it.
type TokenBook struct {
	db *gorm.DB
}

// TransferRecord is a journal entry of the token book.
type TransferRecord struct {
	EntryID        string
	Token          common.Address
	From           common.Address
	To             common.Address
	Amount         ledger.Amount
	Memo           string
	Metadata       json.RawMessage
	CreatedUnixUTC int64
}

type transferMetadata struct {
	Spender string `json:"spender,omitempty"`
}

func (book *TokenBook) BalanceOf(ctx context.Context, token common.Address, account common.Address) (ledger.Amount, error) {
	return book.balance(book.db.WithContext(ctx), token, account)
}

func (book *TokenBook) Allowance(ctx context.Context, token common.Address, owner common.Address, spender common.Address) (ledger.Amount, error) {
	return book.allowance(book.db.WithContext(ctx), token, owner, spender)
}

func (book *TokenBook) Approve(ctx context.Context, token common.Address, owner common.Address, spender common.Address, amount ledger.Amount) error {
	err := book.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&TokenAllowance{
		Token:   token.Hex(),
		Owner:   owner.Hex(),
		Spender: spender.Hex(),
		Amount:  amount.String(),
	}).Error
	if err != nil {
		return wrapStoreError(errorSubjectAllowance, errorCodeSave, err)
	}
	return nil
}

func (book *TokenBook) Transfer(ctx context.Context, transfer ledger.TokenTransfer) error {
	return book.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return book.move(transaction, transfer, transferMetadata{})
	})
}

func (book *TokenBook) TransferFrom(ctx context.Context, spender common.Address, transfer ledger.TokenTransfer) error {
	return book.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		allowance, err := book.allowance(transaction.Clauses(clause.Locking{Strength: "UPDATE"}), transfer.Token, transfer.From, spender)
		if err != nil {
			return err
		}
		if allowance.LessThan(transfer.Amount) {
			return wrapStoreError(errorSubjectAllowance, errorCodeInvalid,
				fmt.Errorf("%w: allowance %s, requested %s", ledger.ErrInsufficientAllowance, allowance, transfer.Amount))
		}
		remaining, err := allowance.Sub(transfer.Amount)
		if err != nil {
			return err
		}
		if err := transaction.Clauses(clause.OnConflict{UpdateAll: true}).Create(&TokenAllowance{
			Token:   transfer.Token.Hex(),
			Owner:   transfer.From.Hex(),
			Spender: spender.Hex(),
			Amount:  remaining.String(),
		}).Error; err != nil {
			return wrapStoreError(errorSubjectAllowance, errorCodeSave, err)
		}
		return book.move(transaction, transfer, transferMetadata{Spender: spender.Hex()})
	})
}

// Mint credits new supply of token to account and journals it from the zero address.
func (book *TokenBook) Mint(ctx context.Context, token common.Address, account common.Address, amount ledger.Amount) error {
	return book.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		current, err := book.balance(transaction.Clauses(clause.Locking{Strength: "UPDATE"}), token, account)
		if err != nil {
			return err
		}
		credited, err := current.Add(amount)
		if err != nil {
			return err
		}
		if err := book.saveBalance(transaction, token, account, credited); err != nil {
			return err
		}
		return book.journal(transaction, ledger.TokenTransfer{
			Token:  token,
			To:     account,
			Amount: amount,
			Memo:   memoMint,
		}, transferMetadata{})
	})
}

// History lists the most recent journal entries touching account for token.
func (book *TokenBook) History(ctx context.Context, token common.Address, account common.Address, limit int) ([]TransferRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	var rows []TokenTransfer
	err := book.db.WithContext(ctx).
		Where("token = ? AND (from_account = ? OR to_account = ?)", token.Hex(), account.Hex(), account.Hex()).
		Order("created_at DESC, entry_id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectTransfer, errorCodeList, err)
	}
	records := make([]TransferRecord, 0, len(rows))
	for _, row := range rows {
		amount, err := parseAmountColumn(errorSubjectTransfer, row.Amount)
		if err != nil {
			return nil, err
		}
		records = append(records, TransferRecord{
			EntryID:        row.EntryID,
			Token:          parseAddressColumn(row.Token),
			From:           parseAddressColumn(row.FromAccount),
			To:             parseAddressColumn(row.ToAccount),
			Amount:         amount,
			Memo:           row.Memo,
			Metadata:       json.RawMessage(row.Metadata),
			CreatedUnixUTC: row.CreatedAt.Unix(),
		})
	}
	return records, nil
}

func (book *TokenBook) move(transaction *gorm.DB, transfer ledger.TokenTransfer, metadata transferMetadata) error {
	locked := transaction.Clauses(clause.Locking{Strength: "UPDATE"}).Session(&gorm.Session{})
	fromBalance, err := book.balance(locked, transfer.Token, transfer.From)
	if err != nil {
		return err
	}
	if fromBalance.LessThan(transfer.Amount) {
		return wrapStoreError(errorSubjectBalance, errorCodeInvalid,
			fmt.Errorf("%w: balance %s, requested %s", ledger.ErrInsufficientBalance, fromBalance, transfer.Amount))
	}
	if transfer.From != transfer.To {
		toBalance, err := book.balance(locked, transfer.Token, transfer.To)
		if err != nil {
			return err
		}
		debited, err := fromBalance.Sub(transfer.Amount)
		if err != nil {
			return err
		}
		credited, err := toBalance.Add(transfer.Amount)
		if err != nil {
			return err
		}
		if err := book.saveBalance(transaction, transfer.Token, transfer.From, debited); err != nil {
			return err
		}
		if err := book.saveBalance(transaction, transfer.Token, transfer.To, credited); err != nil {
			return err
		}
	}
	return book.journal(transaction, transfer, metadata)
}

func (book *TokenBook) journal(transaction *gorm.DB, transfer ledger.TokenTransfer, metadata transferMetadata) error {
	encodedMetadata, err := json.Marshal(metadata)
	if err != nil {
		return wrapStoreError(errorSubjectTransfer, errorCodeInvalid, err)
	}
	createdAt := time.Now().UTC()
	if transfer.UnixUTC != 0 {
		createdAt = time.Unix(transfer.UnixUTC, 0).UTC()
	}
	entry := TokenTransfer{
		Token:       transfer.Token.Hex(),
		FromAccount: transfer.From.Hex(),
		ToAccount:   transfer.To.Hex(),
		Amount:      transfer.Amount.String(),
		Memo:        transfer.Memo,
		Metadata:    datatypes.JSON(encodedMetadata),
		CreatedAt:   createdAt,
	}
	if err := transaction.Create(&entry).Error; err != nil {
		return wrapStoreError(errorSubjectTransfer, errorCodeSave, err)
	}
	return nil
}

func (book *TokenBook) balance(db *gorm.DB, token common.Address, account common.Address) (ledger.Amount, error) {
	var rows []TokenBalance
	err := db.Where("token = ? AND account = ?", token.Hex(), account.Hex()).Limit(1).Find(&rows).Error
	if err != nil {
		return ledger.Amount{}, wrapStoreError(errorSubjectBalance, errorCodeGet, err)
	}
	if len(rows) == 0 {
		return ledger.ZeroAmount(), nil
	}
	return parseAmountColumn(errorSubjectBalance, rows[0].Balance)
}

func (book *TokenBook) allowance(db *gorm.DB, token common.Address, owner common.Address, spender common.Address) (ledger.Amount, error) {
	var rows []TokenAllowance
	err := db.Where("token = ? AND owner = ? AND spender = ?", token.Hex(), owner.Hex(), spender.Hex()).Limit(1).Find(&rows).Error
	if err != nil {
		return ledger.Amount{}, wrapStoreError(errorSubjectAllowance, errorCodeGet, err)
	}
	if len(rows) == 0 {
		return ledger.ZeroAmount(), nil
	}
	return parseAmountColumn(errorSubjectAllowance, rows[0].Amount)
}

func (book *TokenBook) saveBalance(transaction *gorm.DB, token common.Address, account common.Address, balance ledger.Amount) error {
	err := transaction.Clauses(clause.OnConflict{UpdateAll: true}).Create(&TokenBalance{
		Token:   token.Hex(),
		Account: account.Hex(),
		Balance: balance.String(),
	}).Error
	if err != nil {
		return wrapStoreError(errorSubjectBalance, errorCodeSave, err)
	}
	return nil
}
