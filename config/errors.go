package config

import (
	"errors"
	"fmt"

	"github.com/samber/oops"

	"github.com/MrEthical07/authcore"
)

var (
	errMissing       = errors.New("value required")
	errUnknownDriver = errors.New("unknown store driver (want memory, redis or postgres)")
)

func configErr(key string, err error) error {
	return oops.
		In("config").
		Code("INVALID_CONFIG").
		With("key", key).
		Wrap(fmt.Errorf("%w: %s: %w", authcore.ErrConfiguration, key, err))
}
