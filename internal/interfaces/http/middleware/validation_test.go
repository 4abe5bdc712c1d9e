package middleware

import (
	"errors"
	"testing"

	"github.com/debtsettle/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type validationProbe struct {
	TaxpayerID string   `json:"taxpayer_id" binding:"required,cpf"`
	DebtIDs    []string `json:"debt_ids" binding:"required,min=1"`
	Reason     string   `json:"reason" binding:"max=5"`
	Method     string   `json:"method" binding:"omitempty,oneof=pix cash"`
}

func TestSetupValidator(t *testing.T) {
	SetupValidator()

	t.Run("accepts formatted and bare CPFs", func(t *testing.T) {
		for _, cpf := range []string{"11144477735", "111.444.777-35"} {
			probe := validationProbe{TaxpayerID: cpf, DebtIDs: []string{"a"}}
			assert.NoError(t, binding.Validator.ValidateStruct(&probe), cpf)
		}
	})

	t.Run("reports json field names and messages", func(t *testing.T) {
		probe := validationProbe{
			TaxpayerID: "11111111111",
			DebtIDs:    []string{},
			Reason:     "too long",
			Method:     "boleto",
		}

		err := binding.Validator.ValidateStruct(&probe)
		require.Error(t, err)

		resp := FormatValidationErrors(err, "req-1")
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-1", resp.Error.RequestID)

		messages := map[string]string{}
		for _, f := range resp.Error.Fields {
			messages[f.Field] = f.Message
		}
		assert.Equal(t, map[string]string{
			"taxpayer_id": "Invalid taxpayer id",
			"debt_ids":    "Must contain at least 1 item(s)",
			"reason":      "Must be at most 5 characters",
			"method":      "Must be one of: pix cash",
		}, messages)
	})
}

func TestFormatValidationErrors_NonValidation(t *testing.T) {
	resp := FormatValidationErrors(errors.New("unexpected EOF"), "req-2")

	assert.Equal(t, dto.ErrCodeInvalidJSON, resp.Error.Code)
	assert.Empty(t, resp.Error.Fields)
}
