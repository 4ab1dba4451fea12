package alarm

import "errors"

var errNotObject = errors.New("alarm id map is not a JSON object")
