package seed

import (
	"bufio"
	"bytes"
	"io"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/salon-pos/internal/domain/catalog"
)

// maxLine bounds one catalog record.
const maxLine = 64 << 10

// ReadCatalog decodes catalog items from JSON lines:
//
//	{"kind":"service","id":"S1","name":"Corte de Cabello","price":150000,"durationMinutes":30}
//
// Blank lines are skipped. Prices may be numbers or strings.
func ReadCatalog(r io.Reader) ([]catalog.Item, error) {
	var items []catalog.Item
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLine)

	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		item, err := decodeItem(data)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		items = append(items, item)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan catalog")
	}
	return items, nil
}

func decodeItem(data []byte) (catalog.Item, error) {
	var item catalog.Item
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "kind":
			var v string
			v, err = d.Str()
			item.Kind = catalog.Kind(v)
		case "id":
			item.ID, err = d.Str()
		case "name":
			item.Name, err = d.Str()
		case "category":
			item.Category, err = d.Str()
		case "price":
			item.Price, err = decodePrice(d)
		case "stock":
			item.Stock, err = d.Int()
		case "minStock":
			item.MinStock, err = d.Int()
		case "durationMinutes":
			item.DurationMinutes, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return catalog.Item{}, err
	}

	switch {
	case !item.Kind.Valid():
		return catalog.Item{}, errors.Errorf("unknown kind %q", item.Kind)
	case item.ID == "":
		return catalog.Item{}, errors.New("id is required")
	case item.Name == "":
		return catalog.Item{}, errors.New("name is required")
	case item.Price.IsNegative():
		return catalog.Item{}, errors.New("price must not be negative")
	}
	return item, nil
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		raw = n.String()
	default:
		return decimal.Decimal{}, errors.New("expected number or string")
	}
	return decimal.NewFromString(raw)
}
