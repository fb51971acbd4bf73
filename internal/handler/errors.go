package handler

import "github.com/wrknet/warpgate/internal/gwerr"

func notFound(op, msg string) error {
	return gwerr.New(gwerr.NotFound, op, msg)
}

func ioErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return gwerr.Wrap(gwerr.IO, op, err)
}
