package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/schoolcrm/core"
)

func TestRollbarLogger(t *testing.T) {
	buf := new(bytes.Buffer)
	logger := NewRollbarLogger(log.New(buf, "", 0), &core.Config{Env: "TEST"})
	logger.Enable(false)

	t.Run("prepare merges extras", func(t *testing.T) {
		err := errors.New("boom")
		args := logger.prepare("msg", []interface{}{
			err,
			map[string]interface{}{"a": 1},
			map[string]interface{}{"b": 2},
		})
		assert.Equal(t, []interface{}{"msg", err, map[string]interface{}{"a": 1, "b": 2}}, args)
	})

	t.Run("prints message and args", func(t *testing.T) {
		buf.Reset()
		logger.Warn("careful", map[string]interface{}{"class_id": "c1"})
		assert.Equal(t, "careful\nmap[class_id:c1]\n", buf.String())
	})
}
