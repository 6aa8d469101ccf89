package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrLoginActive        ErrCode = "LOGIN_ALREADY_ACTIVE"
	ErrLoginInvalidated   ErrCode = "LOGIN_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Test / session specific ───────────────────────────────────────
	ErrTestNotFound     ErrCode = "TEST_NOT_FOUND"
	ErrTestNotActive    ErrCode = "TEST_NOT_ACTIVE"
	ErrTestAlreadyTaken ErrCode = "TEST_ALREADY_TAKEN"
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionExpired   ErrCode = "SESSION_EXPIRED"
	ErrSessionCompleted ErrCode = "SESSION_COMPLETED"
	ErrSessionLocked    ErrCode = "SESSION_LOCKED"
	ErrInvalidUnbanCode ErrCode = "INVALID_UNBAN_CODE"
	ErrNoUnbanCode      ErrCode = "NO_UNBAN_CODE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Login yoki parol noto'g'ri."
	case ErrLoginActive:
		return "Siz boshqa qurilmada tizimga kirgansiz."
	case ErrLoginInvalidated:
		return "Seansingiz tugadi. Qaytadan kiring."
	case ErrTokenRequired:
		return "Avtorizatsiya tokeni talab qilinadi."
	case ErrTokenInvalid:
		return "Avtorizatsiya tokeni yaroqsiz."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Bu amalga ruxsatingiz yo'q."
	case ErrStudentAccessOnly:
		return "Bu bo'lim faqat o'quvchilar uchun."
	case ErrTeacherAccessOnly:
		return "Bu bo'lim faqat o'qituvchilar uchun."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Ma'lumotlar noto'g'ri kiritildi. Tekshirib qayta urinib ko'ring."
	case ErrInvalidID:
		return "ID formati noto'g'ri."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "So'ralgan ma'lumot topilmadi."

	// ─── Test / session specific ───────────────────────────────────────
	case ErrTestNotFound:
		return "Test topilmadi yoki faol emas."
	case ErrTestNotActive:
		return "Bu test hozircha mavjud emas."
	case ErrTestAlreadyTaken:
		return "Test allaqachon topshirilgan."
	case ErrSessionNotFound:
		return "Test seansi topilmadi."
	case ErrSessionExpired:
		return "Test vaqti tugadi."
	case ErrSessionCompleted:
		return "Test allaqachon yakunlangan."
	case ErrSessionLocked:
		return "Seans bloklangan. Davom etish uchun kodni kiriting."
	case ErrInvalidUnbanCode:
		return "Noto'g'ri kod."
	case ErrNoUnbanCode:
		return "Bu seans uchun kod berilmagan. O'qituvchiga murojaat qiling."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Juda ko'p so'rov yuborildi. Birozdan keyin urinib ko'ring."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Serverda ichki xatolik yuz berdi."
	default:
		return "Kutilmagan xatolik yuz berdi."
	}
}
