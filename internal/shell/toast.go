package shell

// ToastKind - вид уведомления.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
)

// Toast - короткое автоматически исчезающее уведомление.
type Toast struct {
	Kind    ToastKind `json:"kind"`
	Message string    `json:"message"`
}

func successToast(msg string) Toast { return Toast{Kind: ToastSuccess, Message: msg} }
func errorToast(msg string) Toast   { return Toast{Kind: ToastError, Message: msg} }

// Тексты уведомлений.
const (
	MsgUploadSucceeded = "Story generated successfully!"
	MsgUploadFailed    = "Failed to generate story"
	MsgDeleteSucceeded = "Story deleted successfully"
	MsgDeleteFailed    = "Failed to delete story"
	MsgFileRejected    = "This file can't be used. Supports JPEG, PNG, WebP (max 10MB)"
	MsgNoFile          = "Please select a photo first"
	MsgBusy            = "A story is already being generated"
)
