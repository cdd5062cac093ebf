package service

import "fmt"

// ErrorKind classifies expected, user-facing failures. Anything that is
// not a *DomainError is a backend failure: logged once at the boundary
// and surfaced as a generic error, never with store internals attached.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindDuplicateName
	KindUnknownUser
	KindNotGroupChat
	KindAccessDenied
)

// DomainError is the single failure currency of the service layer. Field
// names the offending input or entity so the boundary can produce a
// field-scoped error body.
type DomainError struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// User-visible messages, kept stable because the frontend matches on them.
const (
	msgFieldRequired         = "This field is required"
	msgNoAccessToChat        = "Unfortunately you can not access this chat"
	msgGroupChatExists       = "Group chat with this name already exists"
	msgUserDoesNotExist      = "This user does not exist"
	msgGroupChatDoesNotExist = "Group chat with this id does not exists"
	msgCanNotJoinPrivate     = "Unfortunately, you can not join private chat"
)

func errFieldRequired(field string) *DomainError {
	return &DomainError{Kind: KindValidation, Field: field, Message: msgFieldRequired}
}

func errAccessDenied() *DomainError {
	return &DomainError{Kind: KindAccessDenied, Field: "chat", Message: msgNoAccessToChat}
}

func errDuplicateGroupName() *DomainError {
	return &DomainError{Kind: KindDuplicateName, Field: "name", Message: msgGroupChatExists}
}

func errUnknownUser() *DomainError {
	return &DomainError{Kind: KindUnknownUser, Field: "user", Message: msgUserDoesNotExist}
}

func errChatNotFound() *DomainError {
	return &DomainError{Kind: KindNotFound, Field: "chat", Message: msgGroupChatDoesNotExist}
}

func errNotGroupChat() *DomainError {
	return &DomainError{Kind: KindNotGroupChat, Field: "chat", Message: msgCanNotJoinPrivate}
}

func errUserNotFound() *DomainError {
	return &DomainError{Kind: KindNotFound, Field: "user", Message: msgUserDoesNotExist}
}
