package cart

import "errors"

var errNullMap = errors.New("quantity map is null")

func validIDs(items []string) error {
	if items == nil {
		return errors.New("membership is null")
	}
	return nil
}
