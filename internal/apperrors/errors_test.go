package apperrors

import (
	"errors"
	"net/http"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestAppErrors(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AppErrors Suite")
}

var _ = Describe("Structured Errors", func() {
	Describe("AppError", func() {
		Context("basic error creation", func() {
			It("should create error with correct properties", func() {
				err := New(ErrorTypeValidation, "test message")

				Expect(err.Type).To(Equal(ErrorTypeValidation))
				Expect(err.Message).To(Equal("test message"))
				Expect(err.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(err.Cause).To(BeNil())
			})

			It("should format Error() with and without details", func() {
				err := New(ErrorTypeValidation, "test message")
				Expect(err.Error()).To(Equal("validation: test message"))

				err.WithDetails("extra info")
				Expect(err.Error()).To(Equal("validation: test message (extra info)"))
			})
		})

		Context("wrapping an underlying cause", func() {
			It("should preserve the cause and support Unwrap", func() {
				original := errors.New("original error")
				wrapped := Wrap(original, ErrorTypeDatabase, "operation failed")

				Expect(wrapped.Cause).To(Equal(original))
				Expect(wrapped.Unwrap()).To(Equal(original))
			})
		})

		DescribeTable("status code mapping",
			func(t ErrorType, code int) {
				Expect(New(t, "msg").StatusCode).To(Equal(code))
			},
			Entry("validation", ErrorTypeValidation, http.StatusBadRequest),
			Entry("auth", ErrorTypeAuth, http.StatusUnauthorized),
			Entry("not found", ErrorTypeNotFound, http.StatusNotFound),
			Entry("conflict", ErrorTypeConflict, http.StatusConflict),
			Entry("timeout", ErrorTypeTimeout, http.StatusRequestTimeout),
			Entry("rate limit", ErrorTypeRateLimit, http.StatusTooManyRequests),
			Entry("database", ErrorTypeDatabase, http.StatusInternalServerError),
			Entry("transient", ErrorTypeTransient, http.StatusServiceUnavailable),
			Entry("extraction", ErrorTypeExtraction, http.StatusUnprocessableEntity),
			Entry("invariant", ErrorTypeInvariant, http.StatusInternalServerError),
		)

		Context("type inspection helpers", func() {
			It("should distinguish AppError types from plain errors", func() {
				validationErr := NewValidationError("test")
				Expect(IsType(validationErr, ErrorTypeValidation)).To(BeTrue())
				Expect(IsType(validationErr, ErrorTypeAuth)).To(BeFalse())

				regular := errors.New("regular error")
				Expect(IsType(regular, ErrorTypeValidation)).To(BeFalse())
				Expect(GetType(regular)).To(Equal(ErrorTypeInternal))
			})
		})

		Context("safe messages for external callers", func() {
			It("should pass through validation messages but mask internal ones", func() {
				Expect(SafeErrorMessage(NewValidationError("specific message"))).To(Equal("specific message"))
				Expect(SafeErrorMessage(errors.New("internal panic"))).To(Equal("an unexpected error occurred"))
			})
		})

		Context("structured log fields", func() {
			It("should include the standard key set", func() {
				original := errors.New("connection failed")
				appErr := Wrapf(original, ErrorTypeDatabase, "query failed").WithDetails("table: users")
				fields := LogFields(appErr)

				Expect(fields).To(HaveKey("error"))
				Expect(fields).To(HaveKey("error_type"))
				Expect(fields).To(HaveKey("status_code"))
				Expect(fields).To(HaveKey("error_details"))
				Expect(fields).To(HaveKey("underlying_error"))
				Expect(fields["error_type"]).To(Equal("database"))
			})
		})

		Context("Chain", func() {
			It("should return nil for no errors and the same error for one", func() {
				Expect(Chain()).To(BeNil())

				single := errors.New("single error")
				Expect(Chain(single)).To(Equal(single))
			})

			It("should join multiple errors and skip nils", func() {
				err1 := errors.New("first error")
				err2 := errors.New("second error")
				chained := Chain(err1, nil, err2, nil)

				Expect(chained).ToNot(BeNil())
				Expect(chained.Error()).To(Equal("first error -> second error"))

				Expect(Chain(nil, nil)).To(BeNil())
			})
		})
	})
})
