package events

// Dot-namespaced event type strings. TypeUnknown is the forward-compatibility
// sentinel: consumers store unrecognized types instead of dropping them.
const (
	TypeUnknown            = "unknown"
	TypeUserCreated        = "user.created"
	TypeFriendAdded        = "friend.added"
	TypeFriendRemoved      = "friend.removed"
	TypeAccountCreated     = "account.created"
	TypeAccountDeposit     = "account.deposit"
	TypeAccountWithdrawal  = "account.withdrawal"
	TypeAccountTransfer    = "account.transfer"
	TypeTransactionCreated = "transaction.created"
)

// Transaction kinds carried by transaction.created payloads.
const (
	TransactionDeposit    = "DEPOSIT"
	TransactionWithdrawal = "WITHDRAWAL"
	TransactionTransfer   = "TRANSFER"
)

// Transfer legs as seen from the account owning the event.
const (
	TransferIn  = "IN"
	TransferOut = "OUT"
)
