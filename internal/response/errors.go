package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidAnswer   ErrCode = "INVALID_ANSWER"
	ErrInvalidQuestion ErrCode = "INVALID_QUESTION"
	ErrTooManyAnswers  ErrCode = "TOO_MANY_ANSWERS"
	ErrNoAnswers       ErrCode = "NO_ANSWERS"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound        ErrCode = "NOT_FOUND"
	ErrExamNotFound    ErrCode = "EXAM_NOT_FOUND"
	ErrSessionNotFound ErrCode = "SESSION_NOT_FOUND"
	ErrNoActiveSession ErrCode = "NO_ACTIVE_SESSION"
	ErrResultNotFound  ErrCode = "RESULT_NOT_FOUND"
	ErrConflict        ErrCode = "CONFLICT"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrExamNotAvailable    ErrCode = "EXAM_NOT_AVAILABLE"
	ErrExamCompleted       ErrCode = "EXAM_ALREADY_COMPLETED"
	ErrSessionSubmitted    ErrCode = "SESSION_ALREADY_SUBMITTED"
	ErrSessionNotSubmitted ErrCode = "SESSION_NOT_SUBMITTED"
	ErrCancelWindowClosed  ErrCode = "CANCEL_WINDOW_CLOSED"
	ErrTimeExpired         ErrCode = "TIME_EXPIRED"
	ErrStartConflict       ErrCode = "START_CONFLICT"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidAnswer:
		return "Jawaban harus salah satu dari A, B, C, atau D."
	case ErrInvalidQuestion:
		return "Soal tidak termasuk dalam ujian ini."
	case ErrTooManyAnswers:
		return "Terlalu banyak jawaban dalam satu permintaan."
	case ErrNoAnswers:
		return "Minimal satu jawaban diperlukan."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrExamNotFound:
		return "Ujian tidak ditemukan."
	case ErrSessionNotFound:
		return "Sesi ujian tidak ditemukan."
	case ErrNoActiveSession:
		return "Tidak ada sesi ujian yang sedang berlangsung."
	case ErrResultNotFound:
		return "Hasil ujian tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrExamNotAvailable:
		return "Ujian ini saat ini tidak tersedia."
	case ErrExamCompleted:
		return "Anda sudah menyelesaikan ujian ini."
	case ErrSessionSubmitted:
		return "Sesi ujian sudah dikumpulkan."
	case ErrSessionNotSubmitted:
		return "Sesi ujian belum dikumpulkan."
	case ErrCancelWindowClosed:
		return "Sesi ujian hanya dapat dibatalkan dalam 15 menit pertama."
	case ErrTimeExpired:
		return "Waktu ujian telah habis."
	case ErrStartConflict:
		return "Sesi ujian sedang dibuat. Silakan coba lagi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
