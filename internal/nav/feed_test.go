package nav

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedTwoEntries = `<?xml version="1.0" encoding="utf-8"?>
<feed xml:base="http://nav.local:7048/DynamicsNAV/OData/" xmlns="http://www.w3.org/2005/Atom"
      xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"
      xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">
  <id>http://nav.local:7048/DynamicsNAV/OData/ServiceItems</id>
  <title type="text">ServiceItems</title>
  <entry>
    <id>http://nav.local:7048/DynamicsNAV/OData/ServiceItems('SI001')</id>
    <content type="application/xml">
      <m:properties>
        <d:No>SI001</d:No>
        <d:Serial_No>SN-100</d:Serial_No>
        <d:Customer_No>C0001</d:Customer_No>
        <d:Quantity m:type="Edm.Decimal">2</d:Quantity>
      </m:properties>
    </content>
  </entry>
  <entry>
    <id>http://nav.local:7048/DynamicsNAV/OData/ServiceItems('SI002')</id>
    <content type="application/xml">
      <m:properties>
        <d:No>SI002</d:No>
        <d:Serial_No>SN-100</d:Serial_No>
        <d:Customer_No m:null="true" />
      </m:properties>
    </content>
  </entry>
</feed>`

const feedOneEntry = `<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"
      xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">
  <entry>
    <content type="application/xml">
      <m:properties><d:No>C0001</d:No><d:Name> PT Maju </d:Name></m:properties>
    </content>
  </entry>
</feed>`

const entryRoot = `<?xml version="1.0" encoding="utf-8"?>
<entry xmlns="http://www.w3.org/2005/Atom"
       xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"
       xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">
  <content type="application/xml">
    <m:properties><d:No>C0002</d:No><d:Name>CV Sentosa</d:Name></m:properties>
  </content>
</entry>`

const feedEmpty = `<feed xmlns="http://www.w3.org/2005/Atom"><title>Customers</title></feed>`

func TestParseFeedMultipleEntries(t *testing.T) {
	records, err := ParseFeed(strings.NewReader(feedTwoEntries))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "SI001", records[0]["No"])
	assert.Equal(t, "SN-100", records[0]["Serial_No"])
	assert.Equal(t, "2", records[0]["Quantity"])
	assert.Equal(t, "SI002", records[1]["No"])

	v, ok := records[1]["Customer_No"]
	assert.True(t, ok, "null property should still be present")
	assert.Nil(t, v)
}

func TestParseFeedSingleEntryInFeed(t *testing.T) {
	records, err := ParseFeed(strings.NewReader(feedOneEntry))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "C0001", records[0]["No"])
	assert.Equal(t, "PT Maju", records[0]["Name"])
}

func TestParseFeedSingleEntryRoot(t *testing.T) {
	records, err := ParseFeed(strings.NewReader(entryRoot))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, Record{"No": "C0002", "Name": "CV Sentosa"}, records[0])
}

func TestParseFeedNoEntries(t *testing.T) {
	records, err := ParseFeed(strings.NewReader(feedEmpty))
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestParseFeedErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty document", ""},
		{"plain text", "not xml"},
		{"unexpected root", `<error><message>boom</message></error>`},
		{"truncated", `<feed><entry><content><m:properties>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFeed(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

const feedComplexProperty = `<feed xmlns="http://www.w3.org/2005/Atom"
      xmlns:d="http://schemas.microsoft.com/ado/2007/08/dataservices"
      xmlns:m="http://schemas.microsoft.com/ado/2007/08/dataservices/metadata">
  <entry>
    <content type="application/xml">
      <m:properties>
        <d:No>C0003</d:No>
        <d:Address m:type="NAV.Address">
          <d:City>Surabaya</d:City>
          <d:Post_Code m:null="true" />
        </d:Address>
        <d:Phones m:type="Collection(Edm.String)">
          <d:element>031-555</d:element>
          <d:element>031-556</d:element>
        </d:Phones>
        <d:Tags m:type="Collection(Edm.String)" />
      </m:properties>
    </content>
  </entry>
</feed>`

func TestParseFeedComplexProperties(t *testing.T) {
	records, err := ParseFeed(strings.NewReader(feedComplexProperty))
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, "C0003", records[0]["No"])
	assert.Equal(t, Record{"City": "Surabaya", "Post_Code": nil}, records[0]["Address"])
	assert.Equal(t, []any{"031-555", "031-556"}, records[0]["Phones"])
	assert.Equal(t, []any{}, records[0]["Tags"])
}
