package validators

import "go.mongodb.org/mongo-driver/bson"

// KeyValueValidator constrains documents written by the Mongo key-value
// store. The booking ledger is one such document.
var KeyValueValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"value",
			"updated_at",
		},
		"additionalProperties": false,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 256,
			},

			"value": bson.M{
				"bsonType": "string",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
