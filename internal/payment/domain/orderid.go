package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// NewOrderID builds a fresh gateway order id for one charge attempt. The
// invoice id and timestamp make it traceable; the uuid salt makes two
// attempts in the same millisecond distinct.
func NewOrderID(invoiceID snowflake.ID, now time.Time) string {
	salt := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("inv-%s-%d-%s", invoiceID.String(), now.UnixMilli(), salt)
}
